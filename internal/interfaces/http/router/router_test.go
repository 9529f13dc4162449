package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/application/retrieval"
	"match-intel-api/internal/config"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/interfaces/http/handler"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/utils"
)

const (
	testSecret = "test-secret"
	testIssuer = "match-intel"
	matchID    = "6f1d7e1a-3a4b-4c5d-8e9f-0a1b2c3d4e5f"
	segmentID  = "1b2c3d4e-5f60-4718-92a3-b4c5d6e7f809"
	otherOrgID = "org-b"
)

type fakeAnswerer struct {
	last retrieval.QuestionInput
}

func (f *fakeAnswerer) Answer(_ context.Context, actor entity.Actor, in retrieval.QuestionInput) (*entity.Answer, error) {
	f.last = in
	if actor.OrgID == otherOrgID {
		return nil, apperrors.ErrMatchNotFound
	}
	if in.Query == "   " {
		return nil, retrieval.ErrQueryRequired
	}
	return &entity.Answer{
		Answer:     retrieval.InsufficientEvidenceMessage,
		Confidence: entity.ConfidenceLow,
		Outcome:    entity.OutcomeInsufficientEvidence,
	}, nil
}

type fakeInsights struct{}

func (fakeInsights) GetSegmentInsight(_ context.Context, _ entity.Actor, segID string, _ bool) (*insight.SegmentInsightView, error) {
	return &insight.SegmentInsightView{
		State:     entity.ArtifactStale,
		SegmentID: segID,
		NoteCount: 14,
		IsStale:   true,
		Insight: &entity.SegmentInsight{
			ID: "si-1", SegmentID: segID, Headline: "High press", Sentence: "They pressed high.",
			NoteCountAtGeneration: 10, GeneratedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}, nil
}

func (fakeInsights) GetMatchIntelligence(_ context.Context, _ entity.Actor, mid string, _ bool) (*insight.MatchIntelligenceView, error) {
	return &insight.MatchIntelligenceView{State: entity.ArtifactInsufficient, MatchID: mid, NoteCount: 24, Tier: entity.MatchTierInsufficient}, nil
}

func (fakeInsights) Regenerate(_ context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*insight.RegenerationResult, error) {
	if !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	if scope == entity.ScopeMatch {
		return nil, insight.ErrInsufficientNotes
	}
	return &insight.RegenerationResult{Scope: scope, ScopeID: scopeID, Regenerated: true, ArtifactID: "si-2", NoteCount: 3}, nil
}

func (fakeInsights) Reconcile(_ context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*insight.ReconcileResult, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return &insight.ReconcileResult{Scope: scope, ScopeID: scopeID, ActiveID: "si-9"}, nil
}

type fakeNotes struct{}

func (fakeNotes) CreateNote(_ context.Context, actor entity.Actor, in narration.CreateNoteInput) (*entity.Note, error) {
	return &entity.Note{ID: "n-1", MatchID: in.MatchID, SegmentID: in.SegmentID, AuthorID: actor.UserID, RawText: in.Text}, nil
}

func (fakeNotes) UpdateText(context.Context, entity.Actor, string, string) (*entity.Note, error) {
	return nil, apperrors.ErrNoteNotFound
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, int, error) {
	return false, 0, nil
}

func newTestRouter(t *testing.T, answerer *fakeAnswerer) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT = config.JWTConfig{Enabled: true, Secret: testSecret, Issuer: testIssuer}

	return New(cfg, Handlers{
		Health:   handler.NewHealthHandler("v-test"),
		Question: handler.NewQuestionHandler(answerer),
		Insight:  handler.NewInsightHandler(fakeInsights{}),
		Note:     handler.NewNoteHandler(fakeNotes{}),
	}, nil)
}

func token(t *testing.T, org, role string) string {
	t.Helper()
	tok, err := utils.NewJWTManager(testSecret, testIssuer).GenerateToken("u-1", org, role, "", time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

func do(t *testing.T, r *Router, method, path, auth string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestAskQuestion(t *testing.T) {
	answerer := &fakeAnswerer{}
	r := newTestRouter(t, answerer)

	w, env := do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", token(t, "org-a", "coach"),
		map[string]any{"query": "How did the press work?", "k_notes": 30})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, env.TraceID)
	assert.Equal(t, 30, answerer.last.KNotes)
	assert.Equal(t, 0, answerer.last.KInsights)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "low", data["confidence"])
	assert.Equal(t, []any{}, data["evidence"])
}

func TestAskQuestionErrors(t *testing.T) {
	r := newTestRouter(t, &fakeAnswerer{})

	w, _ := do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", "", map[string]any{"query": "q"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/not-a-uuid/questions", token(t, "org-a", "coach"), map[string]any{"query": "q"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", token(t, "org-a", "coach"), map[string]any{"k_notes": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", token(t, "org-a", "coach"), map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", token(t, otherOrgID, "coach"), map[string]any{"query": "q"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeMatchNotFound), env.Error.ErrorCode)
}

func TestSegmentInsightStaleRead(t *testing.T) {
	r := newTestRouter(t, &fakeAnswerer{})

	w, env := do(t, r, http.MethodGet, "/v1/segments/"+segmentID+"/insight", token(t, "org-a", "player"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "active_stale", data["state"])
	assert.Equal(t, true, data["is_stale"])
	assert.Equal(t, "High press", data["headline"])
	assert.EqualValues(t, 10, data["note_count_at_generation"])
}

func TestMatchIntelligenceInsufficientHasNoArtifactFields(t *testing.T) {
	r := newTestRouter(t, &fakeAnswerer{})

	w, env := do(t, r, http.MethodGet, "/v1/matches/"+matchID+"/intelligence", token(t, "org-a", "player"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "insufficient", data["state"])
	assert.NotContains(t, data, "headline")
	assert.NotContains(t, data, "is_stale")
}

func TestRegenerationsAndReconcile(t *testing.T) {
	r := newTestRouter(t, &fakeAnswerer{})

	w, env := do(t, r, http.MethodPost, "/v1/regenerations", token(t, "org-a", "analyst"),
		map[string]any{"scope_type": "segment", "scope_id": segmentID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"regenerated":true`)

	w, _ = do(t, r, http.MethodPost, "/v1/regenerations", token(t, "org-a", "analyst"),
		map[string]any{"scope_type": "match", "scope_id": matchID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/regenerations", token(t, "org-a", "player"),
		map[string]any{"scope_type": "segment", "scope_id": segmentID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/regenerations", token(t, "org-a", "analyst"),
		map[string]any{"scope_type": "team", "scope_id": segmentID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/admin/reconcile", token(t, "org-a", "coach"),
		map[string]any{"scope_type": "match", "scope_id": matchID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = do(t, r, http.MethodPost, "/v1/admin/reconcile", token(t, "org-a", "admin"),
		map[string]any{"scope_type": "match", "scope_id": matchID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"active_id":"si-9"`)
}

func TestNotes(t *testing.T) {
	r := newTestRouter(t, &fakeAnswerer{})

	w, env := do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/notes", token(t, "org-a", "coach"),
		map[string]any{"text": "Left back overlapping", "segment_id": segmentID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(env.Data), `"author_id":"u-1"`)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/notes", token(t, "org-a", "coach"),
		map[string]any{"text": "x", "segment_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/notes", token(t, "org-a", "coach"),
		map[string]any{"text": "no segment"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPatch, "/v1/notes/"+segmentID, token(t, "org-a", "coach"), map[string]any{"text": "edited"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthSkipsAuthAndRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Security.JWT = config.JWTConfig{Enabled: true, Secret: testSecret, Issuer: testIssuer}
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}
	r := New(cfg, Handlers{
		Health:   handler.NewHealthHandler("v-test"),
		Question: handler.NewQuestionHandler(&fakeAnswerer{}),
		Insight:  handler.NewInsightHandler(fakeInsights{}),
		Note:     handler.NewNoteHandler(fakeNotes{}),
	}, denyLimiter{})

	w, _ := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/matches/"+matchID+"/questions", token(t, "org-a", "coach"), map[string]any{"query": "q"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}
