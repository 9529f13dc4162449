package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "match-intel-api/internal/domain/entity"
	"match-intel-api/pkg/metrics"
)

// NoteStore 笔记向量存储，实现 repository.VectorSearcher 与 repository.NoteVectorIndex。
// 余弦度量下 Milvus 返回的分数即相似度，与 pgvector 的 1 - distance 一致。
type NoteStore struct {
	client *Client
	dim    int
}

func NewNoteStore(client *Client, dim int) *NoteStore {
	return &NoteStore{client: client, dim: dim}
}

func (s *NoteStore) ready() error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// EnsureCollection 集合不存在时创建并建 HNSW 索引，随后加载
func (s *NoteStore) EnsureCollection(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	exists, err := s.client.hasCollection(ctx, CollectionMatchNotes)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.createCollection(ctx); err != nil {
			return err
		}
		if err := s.createIndex(ctx); err != nil {
			return err
		}
	}
	return s.client.loadCollection(ctx, CollectionMatchNotes)
}

func (s *NoteStore) createCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", CollectionMatchNotes)))
	defer span.End()

	schema := MatchNotesSchema(s.dim)
	schema.CollectionName = s.client.CollectionName(CollectionMatchNotes)
	if err := s.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *NoteStore) createIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", CollectionMatchNotes)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(entity.COSINE, s.client.config.HNSWM, s.client.config.HNSWEfConstruction)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := s.client.milvus.CreateIndex(ctx, s.client.CollectionName(CollectionMatchNotes), fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Source 语料类型
func (s *NoteStore) Source() domain.SourceType {
	return domain.SourceNote
}

// SearchByVector 按比赛过滤的近邻检索
func (s *NoteStore) SearchByVector(ctx context.Context, matchID string, query domain.Vector, minSimilarity float64, limit int) ([]domain.Candidate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchNotes",
		trace.WithAttributes(
			attribute.String("match_id", matchID),
			attribute.Int("top_k", limit),
		))
	defer span.End()

	sp, err := entity.NewIndexHNSWSearchParam(s.searchEf(limit))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	start := time.Now()
	results, err := s.client.milvus.Search(ctx,
		s.client.CollectionName(CollectionMatchNotes),
		nil,
		matchFilter(matchID),
		outputFields,
		[]entity.Vector{entity.FloatVector(query)},
		fieldVector,
		entity.COSINE,
		limit,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionMatchNotes).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionMatchNotes, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionMatchNotes, "success").Inc()

	out := parseResults(results, minSimilarity)
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

// UpsertNote 写入或覆盖单条笔记向量；未回填向量的笔记忽略
func (s *NoteStore) UpsertNote(ctx context.Context, note *domain.Note) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !note.HasEmbedding() {
		return nil
	}
	if len(note.Embedding) != s.dim {
		return fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(note.Embedding), s.dim)
	}
	ctx, span := tracer.Start(ctx, "milvus.UpsertNote",
		trace.WithAttributes(attribute.String("note_id", note.ID)))
	defer span.End()

	_, err := s.client.milvus.Upsert(ctx, s.client.CollectionName(CollectionMatchNotes), "",
		entity.NewColumnVarChar(fieldID, []string{note.ID}),
		entity.NewColumnFloatVector(fieldVector, s.dim, [][]float32{note.Embedding}),
		entity.NewColumnVarChar(fieldMatchID, []string{note.MatchID}),
		entity.NewColumnVarChar(fieldSegmentID, []string{note.SegmentID}),
		entity.NewColumnInt64(fieldCreatedAt, []int64{note.CreatedAt.UnixMilli()}),
		entity.NewColumnVarChar(fieldText, []string{note.Text()}),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert note vector: %w", err)
	}
	return nil
}

// DeleteNote 删除笔记向量
func (s *NoteStore) DeleteNote(ctx context.Context, noteID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteNote",
		trace.WithAttributes(attribute.String("note_id", noteID)))
	defer span.End()

	expr := fieldID + " in [" + strconv.Quote(noteID) + "]"
	if err := s.client.milvus.Delete(ctx, s.client.CollectionName(CollectionMatchNotes), "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete note vector: %w", err)
	}
	return nil
}

// searchEf ef 不能小于 topK
func (s *NoteStore) searchEf(limit int) int {
	ef := s.client.config.SearchEf
	if ef < limit {
		ef = limit
	}
	return ef
}

func matchFilter(matchID string) string {
	return fieldMatchID + " == " + strconv.Quote(matchID)
}

// parseResults 展开搜索结果，丢弃不超过阈值的条目
func parseResults(results []client.SearchResult, minSimilarity float64) []domain.Candidate {
	var out []domain.Candidate
	for _, result := range results {
		ids, _ := result.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		segs, _ := result.Fields.GetColumn(fieldSegmentID).(*entity.ColumnVarChar)
		times, _ := result.Fields.GetColumn(fieldCreatedAt).(*entity.ColumnInt64)
		texts, _ := result.Fields.GetColumn(fieldText).(*entity.ColumnVarChar)
		if ids == nil {
			continue
		}
		for i := 0; i < result.ResultCount && i < len(result.Scores); i++ {
			score := float64(result.Scores[i])
			if score <= minSimilarity {
				continue
			}
			c := domain.Candidate{ID: ids.Data()[i], Score: score}
			if segs != nil {
				c.SegmentID = strings.TrimSpace(segs.Data()[i])
			}
			if times != nil {
				c.CreatedAt = time.UnixMilli(times.Data()[i])
			}
			if texts != nil {
				c.Text = texts.Data()[i]
			}
			out = append(out, c)
		}
	}
	return out
}
