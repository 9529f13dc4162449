package insight

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	apperrors "match-intel-api/pkg/errors"
)

// memArtifacts 内存版单激活行仓储，Activate 在一把锁内完成停用与插入
type memArtifacts[T entity.CachedArtifact] struct {
	mu        sync.Mutex
	rows      []T
	isActive  func(T) bool
	setActive func(T, bool)
}

func newSegmentArtifacts() *memArtifacts[*entity.SegmentInsight] {
	return &memArtifacts[*entity.SegmentInsight]{
		isActive:  func(s *entity.SegmentInsight) bool { return s.Active },
		setActive: func(s *entity.SegmentInsight, v bool) { s.Active = v },
	}
}

func newMatchArtifacts() *memArtifacts[*entity.MatchIntelligence] {
	return &memArtifacts[*entity.MatchIntelligence]{
		isActive:  func(m *entity.MatchIntelligence) bool { return m.Active },
		setActive: func(m *entity.MatchIntelligence, v bool) { m.Active = v },
	}
}

func (r *memArtifacts[T]) GetActive(_ context.Context, scopeID string) (T, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for _, row := range r.rows {
		if row.ScopeID() == scopeID && r.isActive(row) {
			return row, true, nil
		}
	}
	return zero, false, nil
}

func (r *memArtifacts[T]) Activate(_ context.Context, art T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ScopeID() == art.ScopeID() {
			r.setActive(row, false)
		}
	}
	r.setActive(art, true)
	r.rows = append(r.rows, art)
	return nil
}

func (r *memArtifacts[T]) Counts(_ context.Context, scopeID string) (repository.ScopeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c repository.ScopeCounts
	for _, row := range r.rows {
		if row.ScopeID() != scopeID {
			continue
		}
		c.Total++
		if r.isActive(row) {
			c.Active++
		}
	}
	return c, nil
}

func (r *memArtifacts[T]) Reconcile(_ context.Context, scopeID string) (T, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		latest T
		found  bool
	)
	for _, row := range r.rows {
		if row.ScopeID() != scopeID {
			continue
		}
		if !found || row.GeneratedTime().After(latest.GeneratedTime()) {
			latest, found = row, true
		}
	}
	for _, row := range r.rows {
		if row.ScopeID() == scopeID {
			r.setActive(row, found && row.ArtifactID() == latest.ArtifactID())
		}
	}
	return latest, found, nil
}

func (r *memArtifacts[T]) ListViolations(_ context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := map[string]int{}
	for _, row := range r.rows {
		if _, ok := active[row.ScopeID()]; !ok {
			active[row.ScopeID()] = 0
		}
		if r.isActive(row) {
			active[row.ScopeID()]++
		}
	}
	var out []string
	for id, n := range active {
		if n != 1 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memArtifacts[T]) PruneHistory(_ context.Context, scopeID string, keep int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inactive []int
	for i, row := range r.rows {
		if row.ScopeID() == scopeID && !r.isActive(row) {
			inactive = append(inactive, i)
		}
	}
	if len(inactive) <= keep {
		return 0, nil
	}
	// rows 按插入顺序，越靠前越旧
	drop := map[int]bool{}
	for _, i := range inactive[:len(inactive)-keep] {
		drop[i] = true
	}
	kept := r.rows[:0]
	for i, row := range r.rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return int64(len(drop)), nil
}

// insert 直接写入行，用于构造违反约束的数据
func (r *memArtifacts[T]) insert(rows ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
}

type memMatches struct {
	matches  map[string]*entity.Match
	segments map[string]*entity.Segment
}

func (m *memMatches) GetByID(_ context.Context, id string) (*entity.Match, error) {
	return m.matches[id], nil
}

func (m *memMatches) GetSegment(_ context.Context, id string) (*entity.Segment, error) {
	return m.segments[id], nil
}

func (m *memMatches) ListSegments(_ context.Context, matchID string) ([]*entity.Segment, error) {
	var out []*entity.Segment
	for _, s := range m.segments {
		if s.MatchID == matchID {
			out = append(out, s)
		}
	}
	return out, nil
}

// memNotes 只关心计数；List* 按计数合成笔记
type memNotes struct {
	repository.NoteRepository

	mu        sync.Mutex
	bySegment map[string]int
	byMatch   map[string]int
}

func (n *memNotes) setSegment(id string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bySegment[id] = count
}

func (n *memNotes) setMatch(id string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.byMatch[id] = count
}

func (n *memNotes) CountBySegment(_ context.Context, id string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bySegment[id], nil
}

func (n *memNotes) CountByMatch(_ context.Context, id string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.byMatch[id], nil
}

func (n *memNotes) ListBySegment(ctx context.Context, id string, limit int) ([]*entity.Note, error) {
	c, _ := n.CountBySegment(ctx, id)
	return synthNotes(c, limit), nil
}

func (n *memNotes) ListByMatch(ctx context.Context, id string, limit int) ([]*entity.Note, error) {
	c, _ := n.CountByMatch(ctx, id)
	return synthNotes(c, limit), nil
}

func synthNotes(count, limit int) []*entity.Note {
	if limit > 0 && count > limit {
		count = limit
	}
	out := make([]*entity.Note, count)
	for i := range out {
		out[i] = &entity.Note{ID: fmt.Sprintf("n%d", i), RawText: "note"}
	}
	return out
}

type orgAccess struct {
	matches *memMatches
}

func (a orgAccess) CheckMatch(_ context.Context, actor entity.Actor, matchID string) (*entity.Match, error) {
	m := a.matches.matches[matchID]
	if m == nil || m.OrgID != actor.OrgID {
		return nil, apperrors.ErrMatchNotFound
	}
	return m, nil
}

func (a orgAccess) CheckSegment(ctx context.Context, actor entity.Actor, segmentID string) (*entity.Match, *entity.Segment, error) {
	s := a.matches.segments[segmentID]
	if s == nil {
		return nil, nil, apperrors.ErrSegmentNotFound
	}
	m, err := a.CheckMatch(ctx, actor, s.MatchID)
	if err != nil {
		return nil, nil, err
	}
	return m, s, nil
}

type countingGenerator struct {
	mu           sync.Mutex
	segmentCalls int
	matchCalls   int
	delay        time.Duration
	err          error
	clock        time.Time

	// gate 非空时生成阻塞到 gate 关闭或 ctx 结束；entered 通知已进入生成
	gate    chan struct{}
	entered chan struct{}
}

func (g *countingGenerator) wait(ctx context.Context) error {
	if g.gate == nil {
		return nil
	}
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *countingGenerator) tick() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *countingGenerator) SegmentInsight(ctx context.Context, match *entity.Match, seg *entity.Segment, _ []*entity.Note) (*entity.SegmentInsight, error) {
	time.Sleep(g.delay)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.segmentCalls++
	if g.err != nil {
		return nil, g.err
	}
	return &entity.SegmentInsight{
		ID:          uuid.NewString(),
		SegmentID:   seg.ID,
		MatchID:     match.ID,
		Headline:    "Press",
		Sentence:    "They pressed.",
		GeneratedAt: g.tick(),
	}, nil
}

func (g *countingGenerator) MatchIntelligence(_ context.Context, match *entity.Match, tier entity.MatchTier, _ []*entity.Note) (*entity.MatchIntelligence, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.matchCalls++
	if g.err != nil {
		return nil, g.err
	}
	return &entity.MatchIntelligence{
		ID:          uuid.NewString(),
		MatchID:     match.ID,
		Tier:        tier,
		Headline:    "Control",
		Summary:     "Home side dominated.",
		Sections:    []byte(`[]`),
		GeneratedAt: g.tick(),
	}, nil
}

type recordingTrigger struct {
	mu       sync.Mutex
	queued   map[string]bool
	calls    int
	released int
}

func (t *recordingTrigger) Trigger(_ context.Context, _, _ string, scope entity.ScopeType, scopeID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	key := string(scope) + ":" + scopeID
	if t.queued[key] {
		return false, nil
	}
	t.queued[key] = true
	return true, nil
}

func (t *recordingTrigger) Release(_ context.Context, scope entity.ScopeType, scopeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released++
	delete(t.queued, string(scope)+":"+scopeID)
	return nil
}
