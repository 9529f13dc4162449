package insight

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// AccessChecker 租户校验
type AccessChecker interface {
	CheckMatch(ctx context.Context, actor entity.Actor, matchID string) (*entity.Match, error)
	CheckSegment(ctx context.Context, actor entity.Actor, segmentID string) (*entity.Match, *entity.Segment, error)
}

// ArtifactGenerator 产物生成（LLM + 向量）
type ArtifactGenerator interface {
	SegmentInsight(ctx context.Context, match *entity.Match, seg *entity.Segment, notes []*entity.Note) (*entity.SegmentInsight, error)
	MatchIntelligence(ctx context.Context, match *entity.Match, tier entity.MatchTier, notes []*entity.Note) (*entity.MatchIntelligence, error)
}

// RegenerationTrigger 异步重新生成投递（messaging.RegenerationTrigger）
type RegenerationTrigger interface {
	Trigger(ctx context.Context, orgID, matchID string, scope entity.ScopeType, scopeID string) (bool, error)
	Release(ctx context.Context, scope entity.ScopeType, scopeID string) error
}
