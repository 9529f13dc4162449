package access

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	apperrors "match-intel-api/pkg/errors"
)

type stubMatches struct {
	matches  map[string]*entity.Match
	segments map[string]*entity.Segment
	calls    int
	err      error
}

func (s *stubMatches) GetByID(_ context.Context, id string) (*entity.Match, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.matches[id], nil
}

func (s *stubMatches) GetSegment(_ context.Context, id string) (*entity.Segment, error) {
	return s.segments[id], nil
}

func (s *stubMatches) ListSegments(context.Context, string) ([]*entity.Segment, error) {
	return nil, nil
}

// mapCache 模拟 redis.Cache 的读穿语义
type mapCache struct {
	data map[string][]byte
}

func (m *mapCache) GetOrLoadSafe(ctx context.Context, key string, _ time.Duration, loader func(ctx context.Context) (interface{}, error)) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := loader(ctx)
	if err != nil || v == nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m.data[key] = raw
	return raw, nil
}

func newStub() *stubMatches {
	return &stubMatches{
		matches: map[string]*entity.Match{
			"m-1": {ID: "m-1", OrgID: "org-a", Title: "Final"},
		},
		segments: map[string]*entity.Segment{
			"s-1": {ID: "s-1", MatchID: "m-1", Label: "Q1"},
			"s-x": {ID: "s-x", MatchID: "m-missing"},
		},
	}
}

func TestCheckMatch(t *testing.T) {
	repo := newStub()
	c := NewChecker(repo, nil, 0)
	ctx := context.Background()

	m, err := c.CheckMatch(ctx, entity.Actor{UserID: "u", OrgID: "org-a"}, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Final", m.Title)

	_, err = c.CheckMatch(ctx, entity.Actor{UserID: "u", OrgID: "org-b"}, "m-1")
	assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)

	_, err = c.CheckMatch(ctx, entity.Actor{UserID: "u", OrgID: "org-a"}, "nope")
	assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)

	_, err = c.CheckMatch(ctx, entity.Actor{UserID: "u"}, "m-1")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCheckMatchUsesCache(t *testing.T) {
	repo := newStub()
	c := NewChecker(repo, &mapCache{data: map[string][]byte{}}, time.Minute)
	actor := entity.Actor{UserID: "u", OrgID: "org-a"}

	for i := 0; i < 3; i++ {
		_, err := c.CheckMatch(context.Background(), actor, "m-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.calls)

	// 未命中的记录不缓存
	for i := 0; i < 2; i++ {
		_, err := c.CheckMatch(context.Background(), actor, "absent")
		assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)
	}
	assert.Equal(t, 3, repo.calls)
}

func TestCheckMatchRepositoryError(t *testing.T) {
	repo := newStub()
	repo.err = errors.New("connection refused")
	c := NewChecker(repo, nil, 0)

	_, err := c.CheckMatch(context.Background(), entity.Actor{OrgID: "org-a"}, "m-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.AsAppError(err).Code)
}

func TestCheckSegment(t *testing.T) {
	c := NewChecker(newStub(), nil, 0)
	ctx := context.Background()

	m, s, err := c.CheckSegment(ctx, entity.Actor{OrgID: "org-a"}, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, "Q1", s.Label)

	_, _, err = c.CheckSegment(ctx, entity.Actor{OrgID: "org-b"}, "s-1")
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)

	_, _, err = c.CheckSegment(ctx, entity.Actor{OrgID: "org-a"}, "s-x")
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)

	_, _, err = c.CheckSegment(ctx, entity.Actor{OrgID: "org-a"}, "missing")
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)
}
