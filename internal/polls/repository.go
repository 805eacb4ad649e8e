package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollbox/backend/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// Repository handles poll, choice and vote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts the poll and all its choices in one transaction. If any
// choice insert fails, nothing is persisted.
func (r *Repository) Create(ctx context.Context, p *models.Poll, choiceTexts []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const pollQ = `INSERT INTO polls (id, title, description, created_by, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, pollQ, p.Title, p.Description, p.CreatedBy, p.ExpiresAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}
	p.IsActive = true

	const choiceQ = `INSERT INTO choices (id, poll_id, position, text)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	p.Choices = make([]models.Choice, 0, len(choiceTexts))
	for i, text := range choiceTexts {
		ch := models.Choice{PollID: p.ID, Position: i, Text: text}
		if err := tx.QueryRow(ctx, choiceQ, p.ID, i, text).Scan(&ch.ID, &ch.CreatedAt); err != nil {
			return fmt.Errorf("insert choice %d: %w", i, err)
		}
		p.Choices = append(p.Choices, ch)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET polls_created = polls_created + 1, updated_at = NOW() WHERE id = $1`, p.CreatedBy); err != nil {
		return fmt.Errorf("bump polls_created: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns an active poll with its choices ordered by position.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const q = `SELECT p.id, p.title, p.description, p.created_by, u.username,
		p.total_votes, p.is_active, p.expires_at, p.created_at, p.updated_at
		FROM polls p JOIN users u ON u.id = p.created_by
		WHERE p.id = $1 AND p.is_active`
	var p models.Poll
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Title, &p.Description, &p.CreatedBy, &p.CreatorName,
		&p.TotalVotes, &p.IsActive, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, err
	}
	p.IsExpired = p.Expired()

	rows, err := r.pool.Query(ctx, `SELECT id, poll_id, position, text, votes_count, created_at
		FROM choices WHERE poll_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ch models.Choice
		if err := rows.Scan(&ch.ID, &ch.PollID, &ch.Position, &ch.Text, &ch.VotesCount, &ch.CreatedAt); err != nil {
			return nil, err
		}
		p.Choices = append(p.Choices, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive returns active poll summaries, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.Poll, error) {
	const q = `SELECT p.id, p.title, p.description, p.created_by, u.username,
		p.total_votes, p.is_active, p.expires_at, p.created_at, p.updated_at
		FROM polls p JOIN users u ON u.id = p.created_by
		WHERE p.is_active ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Poll
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CreatedBy, &p.CreatorName,
			&p.TotalVotes, &p.IsActive, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.IsExpired = p.Expired()
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update applies non-nil fields to an active poll and returns it with choices.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Poll, error) {
	const q = `UPDATE polls SET
		title = COALESCE($1, title),
		description = COALESCE($2, description),
		expires_at = COALESCE($3, expires_at),
		updated_at = NOW()
		WHERE id = $4 AND is_active`
	tag, err := r.pool.Exec(ctx, q, params.Title, params.Description, params.ExpiresAt, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrPollNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a poll; choices and votes cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPollNotFound
	}
	return nil
}

// CastVote records one vote in a single transaction: the vote row, the choice
// counter, the poll counter and the voter's votes_cast move together or not
// at all. The (user_id, poll_id) unique constraint is the authority of last
// resort for concurrent duplicates.
func (r *Repository) CastVote(ctx context.Context, pollID, choiceID, userID uuid.UUID, clientIP string) (*models.VoteReceipt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM choices WHERE id = $1 AND poll_id = $2`, choiceID, pollID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChoiceMismatch
	}
	if err != nil {
		return nil, err
	}

	var voted bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM votes WHERE user_id = $1 AND poll_id = $2)`, userID, pollID).Scan(&voted); err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}

	receipt := models.VoteReceipt{PollID: pollID, ChoiceID: choiceID}
	const insertQ = `INSERT INTO votes (id, user_id, choice_id, poll_id, ip_address)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,'')::inet)
		RETURNING id, voted_at`
	if err := tx.QueryRow(ctx, insertQ, userID, choiceID, pollID, clientIP).Scan(&receipt.VoteID, &receipt.VotedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("insert vote: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE choices SET votes_count = votes_count + 1 WHERE id = $1`, choiceID); err != nil {
		return nil, fmt.Errorf("bump choice counter: %w", err)
	}
	if err := tx.QueryRow(ctx, `UPDATE polls SET total_votes = total_votes + 1 WHERE id = $1 RETURNING total_votes`, pollID).
		Scan(&receipt.TotalVotes); err != nil {
		return nil, fmt.Errorf("bump poll counter: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET votes_cast = votes_cast + 1, updated_at = NOW() WHERE id = $1`, userID); err != nil {
		return nil, fmt.Errorf("bump votes_cast: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &receipt, nil
}
