package repository

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// ScopeCounts 某作用域下的行数统计
type ScopeCounts struct {
	Active int
	Total  int
}

// Violated 有行存在但激活行不是恰好一行
func (c ScopeCounts) Violated() bool {
	return c.Total > 0 && c.Active != 1
}

// ArtifactRepository 单激活行缓存产物仓储
type ArtifactRepository[T entity.CachedArtifact] interface {
	// GetActive found=false 表示该作用域没有激活行
	GetActive(ctx context.Context, scopeID string) (artifact T, found bool, err error)
	// Activate 在一个事务内停用该作用域当前激活行并插入新行（新行 active=true）
	Activate(ctx context.Context, artifact T) error
	Counts(ctx context.Context, scopeID string) (ScopeCounts, error)
	// Reconcile 保留生成时间最新的一行为激活，其余停用；返回修复后的激活行
	Reconcile(ctx context.Context, scopeID string) (artifact T, found bool, err error)
	// ListViolations 返回激活行数不为 1 的作用域
	ListViolations(ctx context.Context, limit int) ([]string, error)
	// PruneHistory 删除超出保留数量的历史停用行
	PruneHistory(ctx context.Context, scopeID string, keep int) (int64, error)
}

type SegmentInsightRepository interface {
	ArtifactRepository[*entity.SegmentInsight]
}

type MatchIntelligenceRepository interface {
	ArtifactRepository[*entity.MatchIntelligence]
}
