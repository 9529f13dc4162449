package repository

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// MatchRepository 比赛与片段（只读，外部系统写入）
type MatchRepository interface {
	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	GetSegment(ctx context.Context, id string) (*entity.Segment, error)
	ListSegments(ctx context.Context, matchID string) ([]*entity.Segment, error)
}
