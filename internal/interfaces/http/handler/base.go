// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/application/retrieval"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/interfaces/http/dto"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/logger"
)

// QuestionAnswerer 问答（retrieval.Engine）
type QuestionAnswerer interface {
	Answer(ctx context.Context, actor entity.Actor, in retrieval.QuestionInput) (*entity.Answer, error)
}

// InsightService 缓存产物读取与维护（insight.Service）
type InsightService interface {
	GetSegmentInsight(ctx context.Context, actor entity.Actor, segmentID string, forceRefresh bool) (*insight.SegmentInsightView, error)
	GetMatchIntelligence(ctx context.Context, actor entity.Actor, matchID string, forceRefresh bool) (*insight.MatchIntelligenceView, error)
	Regenerate(ctx context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*insight.RegenerationResult, error)
	Reconcile(ctx context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*insight.ReconcileResult, error)
}

// NoteService 笔记写入（narration.Service）
type NoteService interface {
	CreateNote(ctx context.Context, actor entity.Actor, in narration.CreateNoteInput) (*entity.Note, error)
	UpdateText(ctx context.Context, actor entity.Actor, noteID, text string) (*entity.Note, error)
}

// respondError 把应用层错误映射为响应；未识别的错误记录日志并返回 500
func respondError(c *gin.Context, err error, op string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, retrieval.ErrQueryRequired):
		dto.AppError(c, apperrors.ErrInvalidParam.Clone().WithDetail(err.Error()))
	case errors.Is(err, insight.ErrUnknownScope):
		dto.AppError(c, apperrors.ErrInvalidParam.Clone().WithDetail(err.Error()))
	case errors.Is(err, insight.ErrInsufficientNotes):
		dto.AppError(c, apperrors.ErrInsufficientNotes)
	case errors.Is(err, insight.ErrNoNotes):
		dto.AppError(c, apperrors.ErrValidationFailed.Clone().WithDetail(err.Error()))
	case errors.Is(err, retrieval.ErrRetrievalUnavailable):
		logger.Error(ctx, op+" failed", err)
		dto.AppError(c, apperrors.ErrRetrievalFailed)
	case errors.Is(err, insight.ErrInvariantViolation):
		logger.Error(ctx, op+" failed", err, "alert", "cache_invariant_violation")
		dto.AppError(c, apperrors.New(apperrors.CodeInvariantBroken, "cached artifact requires reconciliation"))
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn(ctx, op+" timed out")
		dto.Error(c, http.StatusGatewayTimeout, "request timed out")
	case apperrors.IsAppError(err):
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, op+" failed", err)
		}
		dto.AppError(c, appErr)
	default:
		logger.Error(ctx, op+" failed", err)
		dto.InternalError(c, op+" failed")
	}
}
