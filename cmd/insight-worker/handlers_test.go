package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/infrastructure/messaging"
	apperrors "match-intel-api/pkg/errors"
)

type fakeRegenerator struct {
	calls []string
	err   error
}

func (f *fakeRegenerator) RegenerateScope(_ context.Context, scope entity.ScopeType, scopeID string) (*insight.RegenerationResult, error) {
	f.calls = append(f.calls, string(scope)+":"+scopeID)
	if f.err != nil {
		return nil, f.err
	}
	return &insight.RegenerationResult{Scope: scope, ScopeID: scopeID, Regenerated: true}, nil
}

type fakeEmbedder struct {
	err error
	ids []string
}

func (f *fakeEmbedder) EmbedNote(_ context.Context, noteID string) error {
	f.ids = append(f.ids, noteID)
	return f.err
}

func regenMessage(t *testing.T, scope, id string) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage("m-1", messaging.TypeRegenerate, "org-1", "match-1",
		messaging.RegenerationMessage{ScopeType: scope, ScopeID: id, Reason: "stale"})
	require.NoError(t, err)
	return msg
}

func TestRegenerationHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches scope", func(t *testing.T) {
		f := &fakeRegenerator{}
		require.NoError(t, regenerationHandler(f)(ctx, regenMessage(t, "segment", "s-1")))
		assert.Equal(t, []string{"segment:s-1"}, f.calls)
	})

	t.Run("unknown scope is dropped", func(t *testing.T) {
		f := &fakeRegenerator{}
		require.NoError(t, regenerationHandler(f)(ctx, regenMessage(t, "season", "x")))
		assert.Empty(t, f.calls)
	})

	t.Run("permanent failures are acked", func(t *testing.T) {
		for _, cause := range []error{insight.ErrInsufficientNotes, insight.ErrNoNotes, apperrors.ErrMatchNotFound} {
			f := &fakeRegenerator{err: cause}
			assert.NoError(t, regenerationHandler(f)(ctx, regenMessage(t, "match", "match-1")))
		}
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		f := &fakeRegenerator{err: errors.New("llm timeout")}
		assert.Error(t, regenerationHandler(f)(ctx, regenMessage(t, "match", "match-1")))
	})
}

func TestEmbedHandler(t *testing.T) {
	ctx := context.Background()
	msg, err := messaging.NewMessage("m-2", messaging.TypeEmbedNote, "org-1", "match-1", messaging.EmbedNoteMessage{NoteID: "n-1"})
	require.NoError(t, err)

	f := &fakeEmbedder{}
	require.NoError(t, embedHandler(f)(ctx, msg))
	assert.Equal(t, []string{"n-1"}, f.ids)

	gone := &fakeEmbedder{err: narration.ErrNoteGone}
	assert.NoError(t, embedHandler(gone)(ctx, msg))

	failing := &fakeEmbedder{err: errors.New("embedding unavailable")}
	assert.Error(t, embedHandler(failing)(ctx, msg))
}
