package polls

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pollbox/backend/internal/middleware"
	"github.com/pollbox/backend/internal/models"
	"github.com/pollbox/backend/pkg/response"
)

// CreateRequest is the body for POST /polls.
type CreateRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Choices     []string   `json:"choices" binding:"required,min=2,max=10,dive,required,max=200"`
}

// UpdateRequest is the body for PATCH /polls/:id. Absent fields stay as-is.
type UpdateRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=200"`
	Description *string    `json:"description"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// VoteRequest is the body for POST /polls/:id/vote.
type VoteRequest struct {
	ChoiceID string `json:"choice_id" binding:"required,uuid"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	store  Store
	cache  *ResultsCache
	logger *zap.Logger
}

// NewHandler creates a polls handler. cache may be nil when Redis is absent.
func NewHandler(store Store, cache *ResultsCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, cache: cache, logger: logger}
}

// canMutate is the single ownership predicate: only the creator may change
// or delete a poll.
func canMutate(requester uuid.UUID, p *models.Poll) bool {
	return requester == p.CreatedBy
}

// List handles GET /polls (open). Active polls only, newest first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("list polls", zap.Error(err))
		response.Internal(c, "failed to list polls")
		return
	}
	if list == nil {
		list = []models.Poll{}
	}
	response.OK(c, list)
}

// Create handles POST /polls (authenticated).
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	p := &models.Poll{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   userID,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.store.Create(c.Request.Context(), p, req.Choices); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}
	response.Created(c, p)
}

// GetByID handles GET /polls/:id (open). Detail with choices and counts.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /polls/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	if !canMutate(userID, p) {
		response.Forbidden(c, "only the poll owner can update it")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("update poll", zap.Error(err))
		response.Internal(c, "failed to update poll")
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context(), id)
	}
	response.OK(c, updated)
}

// Delete handles DELETE /polls/:id (owner only). Hard delete; choices and
// votes cascade.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	if !canMutate(userID, p) {
		response.Forbidden(c, "only the poll owner can delete it")
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, ErrPollNotFound) {
		h.logger.Error("delete poll", zap.Error(err))
		response.Internal(c, "failed to delete poll")
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context(), id)
	}
	response.NoContent(c)
}

// Vote handles POST /polls/:id/vote (authenticated). Preconditions are
// checked in order: poll exists and is active, poll not expired, choice
// belongs to poll, no prior vote by this user.
func (h *Handler) Vote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	if p.Expired() {
		response.Conflict(c, "this poll has expired")
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	choiceID, err := uuid.Parse(req.ChoiceID)
	if err != nil {
		response.BadRequest(c, "invalid choice id")
		return
	}

	receipt, err := h.store.CastVote(c.Request.Context(), id, choiceID, userID, c.ClientIP())
	switch {
	case errors.Is(err, ErrChoiceMismatch):
		response.BadRequest(c, "choice does not belong to this poll")
		return
	case errors.Is(err, ErrAlreadyVoted):
		response.Conflict(c, "you have already voted in this poll")
		return
	case errors.Is(err, ErrPollNotFound):
		response.NotFound(c, "poll not found")
		return
	case err != nil:
		h.logger.Error("cast vote", zap.Error(err))
		response.Internal(c, "failed to record vote")
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context(), id)
	}
	response.Created(c, receipt)
}

// Results handles GET /polls/:id/results (open). Pure read over current
// tallies, cached briefly when Redis is configured.
func (h *Handler) Results(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(c.Request.Context(), id); cached != nil {
			response.OK(c, cached)
			return
		}
	}

	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrPollNotFound) {
		response.NotFound(c, "poll not found")
		return
	}
	if err != nil {
		h.logger.Error("get poll", zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}

	res := BuildResults(p)
	if h.cache != nil {
		h.cache.Set(c.Request.Context(), id, res)
	}
	response.OK(c, res)
}
