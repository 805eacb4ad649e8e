package polls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pollbox/backend/internal/models"
)

// memStore is an in-memory Store used by handler and concurrency tests. It
// mirrors the repository semantics: active-only reads, insertion-ordered
// choices, one vote per (user, poll), counters updated atomically under one
// lock.
type memStore struct {
	mu        sync.Mutex
	seq       int
	polls     map[uuid.UUID]*models.Poll
	votes     map[uuid.UUID][]models.Vote // by poll
	usernames map[uuid.UUID]string
}

func newMemStore() *memStore {
	return &memStore{
		polls:     make(map[uuid.UUID]*models.Poll),
		votes:     make(map[uuid.UUID][]models.Vote),
		usernames: make(map[uuid.UUID]string),
	}
}

var _ Store = (*memStore)(nil)

func (s *memStore) Create(ctx context.Context, p *models.Poll, choiceTexts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := time.Now().Add(time.Duration(s.seq) * time.Millisecond)
	p.ID = uuid.New()
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	p.CreatorName = s.usernames[p.CreatedBy]
	p.Choices = make([]models.Choice, 0, len(choiceTexts))
	for i, text := range choiceTexts {
		p.Choices = append(p.Choices, models.Choice{
			ID:        uuid.New(),
			PollID:    p.ID,
			Position:  i,
			Text:      text,
			CreatedAt: now,
		})
	}
	cp := *p
	cp.Choices = append([]models.Choice(nil), p.Choices...)
	s.polls[p.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *memStore) getLocked(id uuid.UUID) (*models.Poll, error) {
	p, ok := s.polls[id]
	if !ok || !p.IsActive {
		return nil, ErrPollNotFound
	}
	cp := *p
	cp.Choices = append([]models.Choice(nil), p.Choices...)
	cp.IsExpired = cp.Expired()
	return &cp, nil
}

func (s *memStore) ListActive(ctx context.Context) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []models.Poll
	for _, p := range s.polls {
		if !p.IsActive {
			continue
		}
		cp := *p
		cp.Choices = nil
		cp.IsExpired = cp.Expired()
		list = append(list, cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *memStore) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[id]
	if !ok || !p.IsActive {
		return nil, ErrPollNotFound
	}
	if params.Title != nil {
		p.Title = *params.Title
	}
	if params.Description != nil {
		p.Description = *params.Description
	}
	if params.ExpiresAt != nil {
		p.ExpiresAt = params.ExpiresAt
	}
	p.UpdatedAt = time.Now()
	return s.getLocked(id)
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.polls[id]; !ok {
		return ErrPollNotFound
	}
	delete(s.polls, id)
	delete(s.votes, id)
	return nil
}

func (s *memStore) CastVote(ctx context.Context, pollID, choiceID, userID uuid.UUID, clientIP string) (*models.VoteReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[pollID]
	if !ok || !p.IsActive {
		return nil, ErrPollNotFound
	}
	idx := -1
	for i, ch := range p.Choices {
		if ch.ID == choiceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrChoiceMismatch
	}
	for _, v := range s.votes[pollID] {
		if v.UserID == userID {
			return nil, ErrAlreadyVoted
		}
	}

	vote := models.Vote{
		ID:        uuid.New(),
		UserID:    userID,
		ChoiceID:  choiceID,
		PollID:    pollID,
		IPAddress: clientIP,
		VotedAt:   time.Now(),
	}
	s.votes[pollID] = append(s.votes[pollID], vote)
	p.Choices[idx].VotesCount++
	p.TotalVotes++

	return &models.VoteReceipt{
		VoteID:     vote.ID,
		PollID:     pollID,
		ChoiceID:   choiceID,
		TotalVotes: p.TotalVotes,
		VotedAt:    vote.VotedAt,
	}, nil
}

// deactivate flips is_active off, simulating a soft-deactivated poll.
func (s *memStore) deactivate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.polls[id]; ok {
		p.IsActive = false
	}
}

// voteCount returns the number of vote rows for a poll.
func (s *memStore) voteCount(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes[id])
}
