package polls

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pollbox/backend/internal/models"
)

// UpdateParams holds the mutable poll fields. Nil pointers leave the stored
// value unchanged.
type UpdateParams struct {
	Title       *string
	Description *string
	ExpiresAt   *time.Time
}

// Store is the persistence boundary for polls, choices and votes. The pgx
// Repository is the production implementation; tests use an in-memory one.
type Store interface {
	// Create persists the poll and its choices as one unit and bumps the
	// owner's polls_created counter. Fills p.ID, timestamps and p.Choices.
	Create(ctx context.Context, p *models.Poll, choiceTexts []string) error

	// GetByID returns an active poll with its choices in insertion order.
	// Absent or deactivated polls return ErrPollNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)

	// ListActive returns active poll summaries (no choices), newest first.
	ListActive(ctx context.Context) ([]models.Poll, error)

	// Update applies the given fields and returns the updated poll.
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Poll, error)

	// Delete hard-deletes the poll; choices and votes go with it.
	Delete(ctx context.Context, id uuid.UUID) error

	// CastVote records one vote as a single atomic unit: vote row insert,
	// choice counter, poll counter and the voter's votes_cast all commit or
	// none do. Returns ErrChoiceMismatch or ErrAlreadyVoted on rejection.
	CastVote(ctx context.Context, pollID, choiceID, userID uuid.UUID, clientIP string) (*models.VoteReceipt, error)
}
