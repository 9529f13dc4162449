package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"match-intel-api/internal/domain/entity"
)

// MatchRepository 比赛与片段仓储
type MatchRepository struct {
	client *Client
}

func NewMatchRepository(client *Client) *MatchRepository {
	return &MatchRepository{client: client}
}

// GetByID 根据 ID 获取比赛
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	ctx, span := tracer.Start(ctx, "postgres.MatchRepository.GetByID")
	defer span.End()

	var m entity.Match
	if err := getDB(ctx, r.client.db).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &m, nil
}

func (r *MatchRepository) GetSegment(ctx context.Context, id string) (*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MatchRepository.GetSegment")
	defer span.End()

	var s entity.Segment
	if err := getDB(ctx, r.client.db).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &s, nil
}

// ListSegments 按开始时间排序
func (r *MatchRepository) ListSegments(ctx context.Context, matchID string) ([]*entity.Segment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MatchRepository.ListSegments")
	defer span.End()

	var segs []*entity.Segment
	if err := getDB(ctx, r.client.db).
		Where("match_id = ?", matchID).
		Order("start_seconds ASC, id ASC").
		Find(&segs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return segs, nil
}
