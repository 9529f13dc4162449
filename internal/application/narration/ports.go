package narration

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// AccessChecker 租户校验
type AccessChecker interface {
	CheckMatch(ctx context.Context, actor entity.Actor, matchID string) (*entity.Match, error)
	CheckSegment(ctx context.Context, actor entity.Actor, segmentID string) (*entity.Match, *entity.Segment, error)
}

// EmbedPublisher 投递笔记向量化任务（messaging.Producer）
type EmbedPublisher interface {
	PublishEmbedNote(ctx context.Context, orgID, matchID, noteID string) (string, error)
}

// Embedder 文本向量化（embedding.Gateway）
type Embedder interface {
	Embed(ctx context.Context, text string) (entity.Vector, error)
}
