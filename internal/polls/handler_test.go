package polls

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pollbox/backend/internal/middleware"
	"github.com/pollbox/backend/internal/models"
	"github.com/pollbox/backend/pkg/response"
)

// newTestRouter wires the polls handler the way cmd/server does, with a stub
// auth middleware that trusts the X-User-ID header.
func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil, zap.NewNop())

	r := gin.New()
	requireUser := func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(middleware.ContextUserID, id)
		c.Next()
	}

	r.GET("/polls", h.List)
	r.GET("/polls/:id", h.GetByID)
	r.GET("/polls/:id/results", h.Results)
	api := r.Group("")
	api.Use(requireUser)
	{
		api.POST("/polls", h.Create)
		api.PATCH("/polls/:id", h.Update)
		api.DELETE("/polls/:id", h.Delete)
		api.POST("/polls/:id/vote", h.Vote)
	}
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v (body: %s)", err, w.Body.String())
		}
	}
}

func seedPoll(t *testing.T, s *memStore, owner uuid.UUID, title string, choices []string, expiresAt *time.Time) *models.Poll {
	t.Helper()
	p := &models.Poll{Title: title, CreatedBy: owner, ExpiresAt: expiresAt}
	if err := s.Create(context.Background(), p, choices); err != nil {
		t.Fatalf("seed poll: %v", err)
	}
	return p
}

func TestCreatePoll(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name           string
		body           interface{}
		userID         string
		expectedStatus int
	}{
		{
			name: "valid with two choices",
			body: CreateRequest{
				Title:   "Best color?",
				Choices: []string{"Red", "Blue"},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "valid with ten choices",
			body: CreateRequest{
				Title:   "Pick a number",
				Choices: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "one choice rejected",
			body: CreateRequest{
				Title:   "Only option",
				Choices: []string{"Yes"},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "eleven choices rejected",
			body: CreateRequest{
				Title:   "Too many",
				Choices: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing title",
			body: CreateRequest{
				Choices: []string{"A", "B"},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "choice text too long",
			body: CreateRequest{
				Title:   "Long choice",
				Choices: []string{"ok", strings.Repeat("x", 201)},
			},
			userID:         owner.String(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "anonymous rejected",
			body: CreateRequest{
				Title:   "No auth",
				Choices: []string{"A", "B"},
			},
			userID:         "",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			r := newTestRouter(store)

			w := doRequest(t, r, http.MethodPost, "/polls", tt.body, tt.userID)
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body: %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				return
			}

			var p models.Poll
			decodeData(t, w, &p)
			if p.ID == uuid.Nil {
				t.Error("expected poll id to be set")
			}
			if p.CreatedBy != owner {
				t.Errorf("created_by = %s, want %s", p.CreatedBy, owner)
			}
			if !p.IsActive {
				t.Error("new poll should be active")
			}
			if p.TotalVotes != 0 {
				t.Errorf("total_votes = %d, want 0", p.TotalVotes)
			}
			req := tt.body.(CreateRequest)
			if len(p.Choices) != len(req.Choices) {
				t.Fatalf("choices = %d, want %d", len(p.Choices), len(req.Choices))
			}
			for i, ch := range p.Choices {
				if ch.Position != i {
					t.Errorf("choice %d position = %d", i, ch.Position)
				}
				if ch.Text != req.Choices[i] {
					t.Errorf("choice %d text = %q, want %q", i, ch.Text, req.Choices[i])
				}
			}
		})
	}
}

func TestListPolls(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store)
	owner := uuid.New()

	first := seedPoll(t, store, owner, "first", []string{"A", "B"}, nil)
	second := seedPoll(t, store, owner, "second", []string{"A", "B"}, nil)
	hidden := seedPoll(t, store, owner, "hidden", []string{"A", "B"}, nil)
	store.deactivate(hidden.ID)

	w := doRequest(t, r, http.MethodGet, "/polls", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var list []models.Poll
	decodeData(t, w, &list)
	if len(list) != 2 {
		t.Fatalf("listed %d polls, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("polls not ordered newest-first")
	}
	for _, p := range list {
		if p.ID == hidden.ID {
			t.Error("deactivated poll leaked into list")
		}
	}
}

func TestGetPoll(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store)
	owner := uuid.New()
	p := seedPoll(t, store, owner, "detail", []string{"A", "B", "C"}, nil)

	w := doRequest(t, r, http.MethodGet, "/polls/"+p.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got models.Poll
	decodeData(t, w, &got)
	if len(got.Choices) != 3 {
		t.Errorf("choices = %d, want 3", len(got.Choices))
	}

	w = doRequest(t, r, http.MethodGet, "/polls/"+uuid.New().String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poll: status = %d, want 404", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/polls/not-a-uuid", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}

	store.deactivate(p.ID)
	w = doRequest(t, r, http.MethodGet, "/polls/"+p.ID.String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("deactivated poll: status = %d, want 404", w.Code)
	}
}

func TestUpdatePoll(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	t.Run("owner can update", func(t *testing.T) {
		store := newMemStore()
		r := newTestRouter(store)
		p := seedPoll(t, store, owner, "before", []string{"A", "B"}, nil)

		w := doRequest(t, r, http.MethodPatch, "/polls/"+p.ID.String(),
			map[string]string{"title": "after"}, owner.String())
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
		}
		var got models.Poll
		decodeData(t, w, &got)
		if got.Title != "after" {
			t.Errorf("title = %q, want %q", got.Title, "after")
		}
		if len(got.Choices) != 2 {
			t.Errorf("choices lost on update: %d", len(got.Choices))
		}
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		store := newMemStore()
		r := newTestRouter(store)
		p := seedPoll(t, store, owner, "before", []string{"A", "B"}, nil)

		w := doRequest(t, r, http.MethodPatch, "/polls/"+p.ID.String(),
			map[string]string{"title": "hijacked"}, stranger.String())
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
		got, err := store.GetByID(context.Background(), p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "before" {
			t.Errorf("title changed by non-owner: %q", got.Title)
		}
	})

	t.Run("unknown poll", func(t *testing.T) {
		store := newMemStore()
		r := newTestRouter(store)
		w := doRequest(t, r, http.MethodPatch, "/polls/"+uuid.New().String(),
			map[string]string{"title": "x"}, owner.String())
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		store := newMemStore()
		r := newTestRouter(store)
		p := seedPoll(t, store, owner, "before", []string{"A", "B"}, nil)
		w := doRequest(t, r, http.MethodPatch, "/polls/"+p.ID.String(),
			map[string]string{"title": "x"}, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}

func TestDeletePoll(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	voter := uuid.New()

	store := newMemStore()
	r := newTestRouter(store)
	p := seedPoll(t, store, owner, "doomed", []string{"A", "B"}, nil)

	if _, err := store.CastVote(context.Background(), p.ID, p.Choices[0].ID, voter, "198.51.100.7"); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	w := doRequest(t, r, http.MethodDelete, "/polls/"+p.ID.String(), nil, stranger.String())
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete: status = %d, want 403", w.Code)
	}

	w = doRequest(t, r, http.MethodDelete, "/polls/"+p.ID.String(), nil, owner.String())
	if w.Code != http.StatusNoContent {
		t.Fatalf("owner delete: status = %d, want 204 (body: %s)", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/polls/"+p.ID.String(), nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted poll still retrievable: status = %d", w.Code)
	}
	w = doRequest(t, r, http.MethodGet, "/polls/"+p.ID.String()+"/results", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted poll results still retrievable: status = %d", w.Code)
	}
	if n := store.voteCount(p.ID); n != 0 {
		t.Errorf("votes survived delete: %d", n)
	}
}
