package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	Bio          string    `json:"bio"`
	Location     string    `json:"location"`
	AvatarURL    string    `json:"avatar_url"`
	PollsCreated int       `json:"polls_created"`
	VotesCast    int       `json:"votes_cast"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Bio          string    `json:"bio"`
	Location     string    `json:"location"`
	AvatarURL    string    `json:"avatar_url"`
	PollsCreated int       `json:"polls_created"`
	VotesCast    int       `json:"votes_cast"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Bio:          u.Bio,
		Location:     u.Location,
		AvatarURL:    u.AvatarURL,
		PollsCreated: u.PollsCreated,
		VotesCast:    u.VotesCast,
		CreatedAt:    u.CreatedAt,
	}
}
