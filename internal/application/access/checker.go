// Package access 租户校验：所有读写操作在访问比赛数据前必须通过
package access

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	"match-intel-api/internal/infrastructure/persistence/redis"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/logger"
)

// MatchCache 比赛记录读穿缓存（redis.Cache）
type MatchCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) ([]byte, error)
}

// Checker 校验调用方组织与比赛归属是否一致。
// 不存在与跨组织统一返回 not found，不暴露其他组织的数据是否存在。
type Checker struct {
	matches repository.MatchRepository
	cache   MatchCache
	ttl     time.Duration
}

// NewChecker cache 为 nil 时直接查库
func NewChecker(matches repository.MatchRepository, cache MatchCache, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Checker{matches: matches, cache: cache, ttl: ttl}
}

// CheckMatch 校验并返回比赛
func (c *Checker) CheckMatch(ctx context.Context, actor entity.Actor, matchID string) (*entity.Match, error) {
	if actor.OrgID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if matchID == "" {
		return nil, apperrors.ErrInvalidParam.Clone().WithDetail("match_id is required")
	}

	match, err := c.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil || match.OrgID != actor.OrgID {
		if match != nil {
			logger.Warn(ctx, "cross-org match access denied",
				"match_id", matchID, "actor_org", actor.OrgID, "user_id", actor.UserID)
		}
		return nil, apperrors.ErrMatchNotFound
	}
	return match, nil
}

// CheckSegment 校验片段所属比赛，返回比赛与片段
func (c *Checker) CheckSegment(ctx context.Context, actor entity.Actor, segmentID string) (*entity.Match, *entity.Segment, error) {
	if segmentID == "" {
		return nil, nil, apperrors.ErrInvalidParam.Clone().WithDetail("segment_id is required")
	}
	seg, err := c.matches.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load segment")
	}
	if seg == nil {
		return nil, nil, apperrors.ErrSegmentNotFound
	}
	match, err := c.CheckMatch(ctx, actor, seg.MatchID)
	if err != nil {
		if apperrors.AsAppError(err).Code == apperrors.CodeMatchNotFound {
			return nil, nil, apperrors.ErrSegmentNotFound
		}
		return nil, nil, err
	}
	return match, seg, nil
}

func (c *Checker) loadMatch(ctx context.Context, matchID string) (*entity.Match, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		m, err := c.matches.GetByID(ctx, matchID)
		if err != nil || m == nil {
			return nil, err
		}
		return m, nil
	}

	if c.cache == nil {
		m, err := loader(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load match")
		}
		if m == nil {
			return nil, nil
		}
		return m.(*entity.Match), nil
	}

	raw, err := c.cache.GetOrLoadSafe(ctx, redis.MatchKey(matchID), c.ttl, loader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load match")
	}
	if raw == nil {
		return nil, nil
	}
	var m entity.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode cached match: %w", err)
	}
	return &m, nil
}
