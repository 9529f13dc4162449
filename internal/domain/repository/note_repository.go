package repository

import (
	"context"
	"time"

	"match-intel-api/internal/domain/entity"
)

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Note, error)
	// UpdateText 修改文本并清空向量，等待重新回填
	UpdateText(ctx context.Context, id, rawText string, cleanedText *string) error
	SetEmbedding(ctx context.Context, id string, vec entity.Vector) error

	CountByMatch(ctx context.Context, matchID string) (int, error)
	CountBySegment(ctx context.Context, segmentID string) (int, error)
	ListByMatch(ctx context.Context, matchID string, limit int) ([]*entity.Note, error)
	ListBySegment(ctx context.Context, segmentID string, limit int) ([]*entity.Note, error)
	ListMissingEmbedding(ctx context.Context, limit int) ([]*entity.Note, error)

	// Version 返回比赛笔记数量与最近修改时间，用于判断进程内索引是否过期
	Version(ctx context.Context, matchID string) (count int, latest time.Time, err error)
}

// VectorSearcher 按向量近邻检索一个语料。
// 返回的 Score 为 1 - cosine_distance；实现可以用 minSimilarity 预过滤，但调用方仍会再次校验。
type VectorSearcher interface {
	Source() entity.SourceType
	SearchByVector(ctx context.Context, matchID string, query entity.Vector, minSimilarity float64, limit int) ([]entity.Candidate, error)
}

// TextSearcher 笔记全文检索
type TextSearcher interface {
	SearchByText(ctx context.Context, matchID, query string, limit int) ([]entity.Candidate, error)
}

// NoteVectorIndex 外部向量库需要同步写入时实现（pgvector 后端无需实现）
type NoteVectorIndex interface {
	UpsertNote(ctx context.Context, note *entity.Note) error
	DeleteNote(ctx context.Context, noteID string) error
}
