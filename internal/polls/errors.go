package polls

import "errors"

var (
	// ErrPollNotFound covers both absent and deactivated polls.
	ErrPollNotFound = errors.New("poll not found")
	// ErrChoiceMismatch means the choice does not belong to the voted poll.
	ErrChoiceMismatch = errors.New("choice does not belong to poll")
	// ErrAlreadyVoted means the user already has a vote in this poll. The
	// (user_id, poll_id) unique constraint raises it even when a concurrent
	// attempt slips past the pre-check; it is a definitive rejection.
	ErrAlreadyVoted = errors.New("already voted in this poll")
)
