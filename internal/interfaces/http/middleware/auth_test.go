package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/pkg/utils"
)

func newAuthEngine(seen *entity.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(Auth(AuthConfig{Secret: "s", Issuer: "match-intel", SkipPaths: DefaultSkipPaths, Enabled: true}))
	h := func(c *gin.Context) {
		*seen = ActorFromGin(c)
		c.Status(http.StatusNoContent)
	}
	e.GET("/v1/ping", h)
	e.GET("/health", h)
	return e
}

func get(e *gin.Engine, path, auth string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w.Code
}

func TestAuthInjectsActor(t *testing.T) {
	var seen entity.Actor
	e := newAuthEngine(&seen)

	tok, err := utils.NewJWTManager("s", "match-intel").GenerateToken("u-7", "org-1", "analyst", "team-2", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, get(e, "/v1/ping", "Bearer "+tok))
	assert.Equal(t, entity.Actor{UserID: "u-7", OrgID: "org-1", Role: entity.UserRoleAnalyst, TeamID: "team-2"}, seen)
}

func TestAuthRejects(t *testing.T) {
	var seen entity.Actor
	e := newAuthEngine(&seen)
	m := utils.NewJWTManager("s", "match-intel")

	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/ping", ""))
	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/ping", "Token abc"))
	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/ping", "Bearer garbage"))

	badRole, err := m.GenerateToken("u-1", "org-1", "owner", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(e, "/v1/ping", "Bearer "+badRole))

	assert.Equal(t, http.StatusNoContent, get(e, "/health", ""))
	assert.Equal(t, entity.Actor{}, seen)
}
