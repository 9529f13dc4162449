package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/infrastructure/messaging"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/logger"
)

type scopeRegenerator interface {
	RegenerateScope(ctx context.Context, scope entity.ScopeType, scopeID string) (*insight.RegenerationResult, error)
}

type noteEmbedder interface {
	EmbedNote(ctx context.Context, noteID string) error
}

// regenerationHandler 语料不足或作用域已删除时直接确认，不再重投
func regenerationHandler(svc scopeRegenerator) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.RegenerationMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			logger.Warn(ctx, "drop malformed regeneration message", "message_id", msg.ID, "error", err.Error())
			return nil
		}
		scope, err := entity.ParseScopeType(payload.ScopeType)
		if err != nil {
			logger.Warn(ctx, "drop regeneration message with unknown scope", "scope_type", payload.ScopeType)
			return nil
		}
		if msg.MatchID != "" {
			ctx = logger.WithContext(ctx, logger.MatchIDKey, msg.MatchID)
		}

		res, err := svc.RegenerateScope(ctx, scope, payload.ScopeID)
		switch {
		case err == nil:
			logger.Info(ctx, "scope regenerated",
				"scope", scope,
				"scope_id", payload.ScopeID,
				"regenerated", res.Regenerated,
				"reason", payload.Reason,
			)
			return nil
		case permanent(err):
			logger.Warn(ctx, "regeneration skipped", "scope", scope, "scope_id", payload.ScopeID, "error", err.Error())
			return nil
		default:
			return fmt.Errorf("regenerate %s %s: %w", scope, payload.ScopeID, err)
		}
	}
}

func embedHandler(svc noteEmbedder) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.EmbedNoteMessage
		if err := msg.UnmarshalPayload(&payload); err != nil || payload.NoteID == "" {
			logger.Warn(ctx, "drop malformed embed message", "message_id", msg.ID)
			return nil
		}
		err := svc.EmbedNote(ctx, payload.NoteID)
		if errors.Is(err, narration.ErrNoteGone) {
			logger.Debug(ctx, "note deleted before embedding", "note_id", payload.NoteID)
			return nil
		}
		return err
	}
}

func permanent(err error) bool {
	if errors.Is(err, insight.ErrNoNotes) ||
		errors.Is(err, insight.ErrInsufficientNotes) ||
		errors.Is(err, insight.ErrUnknownScope) {
		return true
	}
	return apperrors.IsAppError(err) && apperrors.AsAppError(err).HTTPStatus == http.StatusNotFound
}
