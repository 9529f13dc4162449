package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/retrieval"
	apperrors "match-intel-api/pkg/errors"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{retrieval.ErrQueryRequired, http.StatusBadRequest},
		{fmt.Errorf("scope: %w", insight.ErrUnknownScope), http.StatusBadRequest},
		{insight.ErrInsufficientNotes, http.StatusUnprocessableEntity},
		{insight.ErrNoNotes, http.StatusUnprocessableEntity},
		{fmt.Errorf("notes: %w", retrieval.ErrRetrievalUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("segment s-1: %w", insight.ErrInvariantViolation), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{apperrors.ErrSegmentNotFound, http.StatusNotFound},
		{apperrors.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, tc.err, "test")
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}
