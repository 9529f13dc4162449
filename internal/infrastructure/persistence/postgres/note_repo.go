package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"match-intel-api/internal/domain/entity"
)

// noteText 与 notes.search_tsv 的生成表达式保持一致；查询侧同样固定使用 english 配置
const noteText = "COALESCE(NULLIF(btrim(cleaned_text), ''), raw_text)"

// NoteRepository 笔记仓储，同时提供 pgvector 语义检索与 tsvector 全文检索
type NoteRepository struct {
	client *Client
}

func NewNoteRepository(client *Client) *NoteRepository {
	return &NoteRepository{client: client}
}

// candidateRow 检索结果行；比赛情报行的 segment_id 为 NULL
type candidateRow struct {
	ID        string
	SegmentID *string
	Text      string
	CreatedAt time.Time
	Score     float64
}

func toCandidates(rows []candidateRow) []entity.Candidate {
	out := make([]entity.Candidate, 0, len(rows))
	for _, r := range rows {
		c := entity.Candidate{
			ID:        r.ID,
			Score:     r.Score,
			Text:      r.Text,
			CreatedAt: r.CreatedAt,
		}
		if r.SegmentID != nil {
			c.SegmentID = *r.SegmentID
		}
		out = append(out, c)
	}
	return out
}

func (r *NoteRepository) Create(ctx context.Context, note *entity.Note) error {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Omit("Embedding").Create(note).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取笔记
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*entity.Note, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.GetByID")
	defer span.End()

	var note entity.Note
	if err := getDB(ctx, r.client.db).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

// GetByIDs 批量获取，缺失的 ID 直接跳过
func (r *NoteRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Note, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}
	var notes []*entity.Note
	if err := getDB(ctx, r.client.db).
		Where("id = ANY(?)", pq.Array(ids)).
		Find(&notes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	return notes, nil
}

// UpdateText 修改文本并清空向量
func (r *NoteRepository) UpdateText(ctx context.Context, id, rawText string, cleanedText *string) error {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.UpdateText")
	defer span.End()

	res := getDB(ctx, r.client.db).Model(&entity.Note{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"raw_text":     rawText,
			"cleaned_text": cleanedText,
			"embedding":    gorm.Expr("NULL"),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update note: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("note %s not found", id)
	}
	return nil
}

func (r *NoteRepository) SetEmbedding(ctx context.Context, id string, vec entity.Vector) error {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.SetEmbedding")
	defer span.End()

	if len(vec) == 0 {
		return fmt.Errorf("empty embedding for note %s", id)
	}

	if err := getDB(ctx, r.client.db).
		Exec("UPDATE notes SET embedding = ?::vector WHERE id = ?", vec.PG(), id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set note embedding: %w", err)
	}
	return nil
}

func (r *NoteRepository) CountByMatch(ctx context.Context, matchID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.CountByMatch")
	defer span.End()

	var n int64
	if err := getDB(ctx, r.client.db).Model(&entity.Note{}).Where("match_id = ?", matchID).Count(&n).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return int(n), nil
}

func (r *NoteRepository) CountBySegment(ctx context.Context, segmentID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.CountBySegment")
	defer span.End()

	var n int64
	if err := getDB(ctx, r.client.db).Model(&entity.Note{}).Where("segment_id = ?", segmentID).Count(&n).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return int(n), nil
}

// ListByMatch 按时间正序，供生成提示词使用
func (r *NoteRepository) ListByMatch(ctx context.Context, matchID string, limit int) ([]*entity.Note, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.ListByMatch")
	defer span.End()

	var notes []*entity.Note
	if err := getDB(ctx, r.client.db).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&notes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepository) ListBySegment(ctx context.Context, segmentID string, limit int) ([]*entity.Note, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.ListBySegment")
	defer span.End()

	var notes []*entity.Note
	if err := getDB(ctx, r.client.db).
		Where("segment_id = ?", segmentID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&notes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// ListMissingEmbedding 最早写入的优先
func (r *NoteRepository) ListMissingEmbedding(ctx context.Context, limit int) ([]*entity.Note, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.ListMissingEmbedding")
	defer span.End()

	var notes []*entity.Note
	if err := getDB(ctx, r.client.db).
		Where("embedding IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&notes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list notes missing embedding: %w", err)
	}
	return notes, nil
}

// Version 比赛笔记数量与最近修改时间
func (r *NoteRepository) Version(ctx context.Context, matchID string) (int, time.Time, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.Version")
	defer span.End()

	var row struct {
		Count  int
		Latest time.Time
	}
	if err := getDB(ctx, r.client.db).Raw(`
SELECT COUNT(*) AS count, COALESCE(MAX(updated_at), 'epoch'::timestamptz) AS latest
FROM notes
WHERE match_id = ?`, matchID).Scan(&row).Error; err != nil {
		span.RecordError(err)
		return 0, time.Time{}, fmt.Errorf("failed to get notes version: %w", err)
	}
	return row.Count, row.Latest, nil
}

// Source 语料类型
func (r *NoteRepository) Source() entity.SourceType {
	return entity.SourceNote
}

// SearchByVector 余弦相似度近邻检索，未回填向量的笔记不参与
func (r *NoteRepository) SearchByVector(ctx context.Context, matchID string, query entity.Vector, minSimilarity float64, limit int) ([]entity.Candidate, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.SearchByVector")
	defer span.End()
	span.SetAttributes(attribute.String("match_id", matchID), attribute.Int("limit", limit))

	pv := query.PG()
	var rows []candidateRow
	if err := getDB(ctx, r.client.db).Raw(`
SELECT id, segment_id, `+noteText+` AS text, created_at,
       1 - (embedding <=> ?::vector) AS score
FROM notes
WHERE match_id = ?
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> ?::vector) > ?
ORDER BY embedding <=> ?::vector, created_at DESC
LIMIT ?`, pv, matchID, pv, minSimilarity, pv, limit).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search notes by vector: %w", err)
	}
	span.SetAttributes(attribute.Int("result_count", len(rows)))
	return toCandidates(rows), nil
}

// SearchByText ts_rank_cd 排序的全文检索
func (r *NoteRepository) SearchByText(ctx context.Context, matchID, query string, limit int) ([]entity.Candidate, error) {
	ctx, span := tracer.Start(ctx, "postgres.NoteRepository.SearchByText")
	defer span.End()
	span.SetAttributes(attribute.String("match_id", matchID), attribute.Int("limit", limit))

	var rows []candidateRow
	if err := getDB(ctx, r.client.db).Raw(`
SELECT n.id, n.segment_id, `+noteText+` AS text, n.created_at,
       ts_rank_cd(n.search_tsv, q) AS score
FROM notes n, plainto_tsquery('english', ?) q
WHERE n.match_id = ?
  AND n.search_tsv @@ q
ORDER BY score DESC, n.created_at DESC
LIMIT ?`, query, matchID, limit).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search notes by text: %w", err)
	}
	span.SetAttributes(attribute.Int("result_count", len(rows)))
	return toCandidates(rows), nil
}
