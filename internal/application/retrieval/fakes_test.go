package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"match-intel-api/internal/domain/entity"
)

type fakeCorpus struct {
	source entity.SourceType
	items  []entity.Candidate
	err    error

	mu        sync.Mutex
	calls     int
	lastLimit int
}

func (f *fakeCorpus) Source() entity.SourceType { return f.source }

func (f *fakeCorpus) SearchByVector(_ context.Context, _ string, _ entity.Vector, _ float64, limit int) ([]entity.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := append([]entity.Candidate(nil), f.items...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeText struct {
	items []entity.Candidate
	err   error

	mu        sync.Mutex
	calls     int
	lastLimit int
}

func (f *fakeText) SearchByText(_ context.Context, _ string, _ string, limit int) ([]entity.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := append([]entity.Candidate(nil), f.items...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) (entity.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return entity.Vector{0.1, 0.2, 0.3}, nil
}

type fakeAccess struct {
	match *entity.Match
	err   error
}

func (f fakeAccess) CheckMatch(context.Context, entity.Actor, string) (*entity.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

type spyGenerator struct {
	out   *GeneratedAnswer
	err   error
	calls int
	seen  *Bundle
}

func (s *spyGenerator) Generate(_ context.Context, _ string, b *Bundle) (*GeneratedAnswer, error) {
	s.calls++
	s.seen = b
	if s.err != nil {
		return nil, s.err
	}
	return FilterGenerated(s.out, b), nil
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// noteCandidates 生成 n 条笔记候选，分数从 top 开始每条递减 step
func noteCandidates(prefix string, n int, top, step float64) []entity.Candidate {
	out := make([]entity.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.Candidate{
			ID:        fmt.Sprintf("%s-%02d", prefix, i),
			Source:    entity.SourceNote,
			Score:     top - float64(i)*step,
			SegmentID: fmt.Sprintf("seg-%d", i%3),
			Text:      fmt.Sprintf("note %s %d about the press", prefix, i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}
