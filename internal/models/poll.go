package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a question with a fixed set of choices submitted at creation time.
// TotalVotes is denormalized and kept in step with the votes table by the
// vote transaction; it always equals the sum of the choices' VotesCount.
type Poll struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatorName string     `json:"creator_name,omitempty"`
	TotalVotes  int        `json:"total_votes"`
	IsActive    bool       `json:"is_active"`
	IsExpired   bool       `json:"is_expired"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Choices     []Choice   `json:"choices,omitempty"`
}

// Expired reports whether the poll's optional deadline has passed.
// Never persisted; evaluated against the clock at read time.
func (p *Poll) Expired() bool {
	return p.ExpiresAt != nil && time.Now().After(*p.ExpiresAt)
}

// Choice is one selectable option under a poll. Position is the 0-based
// insertion index; listings and results order by it.
type Choice struct {
	ID         uuid.UUID `json:"id"`
	PollID     uuid.UUID `json:"poll_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	VotesCount int       `json:"votes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vote is one user's immutable selection of exactly one choice within one
// poll. PollID is stored redundantly to carry the (user_id, poll_id) unique
// constraint.
type Vote struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ChoiceID  uuid.UUID `json:"choice_id"`
	PollID    uuid.UUID `json:"poll_id"`
	IPAddress string    `json:"ip_address,omitempty"`
	VotedAt   time.Time `json:"voted_at"`
}

// VoteReceipt is returned after a successful vote.
type VoteReceipt struct {
	VoteID     uuid.UUID `json:"vote_id"`
	PollID     uuid.UUID `json:"poll_id"`
	ChoiceID   uuid.UUID `json:"choice_id"`
	TotalVotes int       `json:"total_votes"`
	VotedAt    time.Time `json:"voted_at"`
}

// ChoiceResult is one row of a tallied poll.
type ChoiceResult struct {
	Choice     string  `json:"choice"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the tallied view of a poll.
type PollResults struct {
	Poll       string         `json:"poll"`
	TotalVotes int            `json:"total_votes"`
	Results    []ChoiceResult `json:"results"`
}
