package retrieval

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// QueryEmbedder 查询向量化（embedding 网关）
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (entity.Vector, error)
}

// AccessChecker 检索前的租户校验，通过后返回比赛
type AccessChecker interface {
	CheckMatch(ctx context.Context, actor entity.Actor, matchID string) (*entity.Match, error)
}

// AnswerGenerator 基于证据包生成结构化回答
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, bundle *Bundle) (*GeneratedAnswer, error)
}

// GeneratedAnswer 模型输出（已过滤）
type GeneratedAnswer struct {
	Answer              string
	KeyPoints           []entity.KeyPoint
	RecommendedSegments []entity.RecommendedSegment
}
