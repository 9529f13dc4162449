package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	"match-intel-api/pkg/metrics"
)

// LexicalRetriever 笔记全文检索；不设分数下限，命中即入选
type LexicalRetriever struct {
	searcher repository.TextSearcher
}

func NewLexicalRetriever(searcher repository.TextSearcher) *LexicalRetriever {
	return &LexicalRetriever{searcher: searcher}
}

func (r *LexicalRetriever) Retrieve(ctx context.Context, matchID, query string, limit int) ([]entity.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	if r == nil || r.searcher == nil {
		return nil, fmt.Errorf("lexical retrieval: searcher not configured")
	}

	start := time.Now()
	raw, err := r.searcher.SearchByText(ctx, matchID, query, limit)
	metrics.RetrievalDuration.WithLabelValues(string(entity.SignalLexical), string(entity.SourceNote)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalFailuresTotal.WithLabelValues(string(entity.SignalLexical), string(entity.SourceNote)).Inc()
		return nil, fmt.Errorf("lexical retrieval: %w", err)
	}

	out := make([]entity.Candidate, len(raw))
	for i, c := range raw {
		c.Signal = entity.SignalLexical
		c.Source = entity.SourceNote
		out[i] = c
	}
	sortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
