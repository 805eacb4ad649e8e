package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollbox/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, username, email, password_hash,
		COALESCE(bio,''), COALESCE(location,''), COALESCE(avatar_url,''),
		polls_created, votes_cast, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.Email, &u.Password,
		&u.Bio, &u.Location, &u.AvatarURL, &u.PollsCreated, &u.VotesCast, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername returns a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const q = `SELECT id, username, email, password_hash,
		COALESCE(bio,''), COALESCE(location,''), COALESCE(avatar_url,''),
		polls_created, votes_cast, created_at, updated_at FROM users WHERE username = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Email, &u.Password,
		&u.Bio, &u.Location, &u.AvatarURL, &u.PollsCreated, &u.VotesCast, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserParams holds optional profile fields for registration.
type CreateUserParams struct {
	Bio       string
	Location  string
	AvatarURL string
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, username, email, passwordHash string, profile *CreateUserParams) (*models.User, error) {
	const q = `INSERT INTO users (username, email, password_hash, bio, location, avatar_url)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
		RETURNING id, username, email, password_hash,
		COALESCE(bio,''), COALESCE(location,''), COALESCE(avatar_url,''),
		polls_created, votes_cast, created_at, updated_at`
	bio, location, avatar := "", "", ""
	if profile != nil {
		bio, location, avatar = profile.Bio, profile.Location, profile.AvatarURL
	}
	var u models.User
	err := r.pool.QueryRow(ctx, q, username, email, passwordHash, bio, location, avatar).
		Scan(&u.ID, &u.Username, &u.Email, &u.Password,
			&u.Bio, &u.Location, &u.AvatarURL, &u.PollsCreated, &u.VotesCast, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
