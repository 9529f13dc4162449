package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	"match-intel-api/pkg/metrics"
)

// DefaultSimilarityThreshold 语义相似度下限（严格大于）
const DefaultSimilarityThreshold = 0.33

// SemanticRetriever 对任意向量语料执行近邻检索。
// 笔记、片段洞察、比赛情报共用同一套阈值、排序与截断逻辑，仅语料访问器不同。
type SemanticRetriever struct {
	threshold float64
}

func NewSemanticRetriever(threshold float64) *SemanticRetriever {
	if threshold < 0 || threshold >= 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &SemanticRetriever{threshold: threshold}
}

// Threshold 当前阈值
func (r *SemanticRetriever) Threshold() float64 {
	return r.threshold
}

// Retrieve 返回相似度 > threshold 的前 limit 条，同分按时间倒序
func (r *SemanticRetriever) Retrieve(ctx context.Context, corpus repository.VectorSearcher, matchID string, query entity.Vector, limit int) ([]entity.Candidate, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("semantic retrieval: empty query vector")
	}
	limit = capFor(corpus.Source(), limit)
	if limit <= 0 {
		return nil, nil
	}

	start := time.Now()
	raw, err := corpus.SearchByVector(ctx, matchID, query, r.threshold, limit)
	metrics.RetrievalDuration.WithLabelValues(string(entity.SignalSemantic), string(corpus.Source())).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalFailuresTotal.WithLabelValues(string(entity.SignalSemantic), string(corpus.Source())).Inc()
		return nil, fmt.Errorf("semantic retrieval over %s: %w", corpus.Source(), err)
	}

	out := make([]entity.Candidate, 0, len(raw))
	for _, c := range raw {
		if c.Score <= r.threshold {
			continue
		}
		c.Signal = entity.SignalSemantic
		c.Source = corpus.Source()
		out = append(out, c)
	}
	sortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// capFor 比赛情报每次至多返回一条
func capFor(source entity.SourceType, limit int) int {
	if source == entity.SourceMatchIntelligence && limit > 1 {
		return 1
	}
	return limit
}

// sortCandidates 分数降序，同分时间新者优先，再按 ID 保证稳定
func sortCandidates(cs []entity.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
