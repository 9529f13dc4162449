package insight

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	apperrors "match-intel-api/pkg/errors"
)

type serviceFixture struct {
	svc      *Service
	matches  *memMatches
	notes    *memNotes
	segments *memArtifacts[*entity.SegmentInsight]
	intel    *memArtifacts[*entity.MatchIntelligence]
	gen      *countingGenerator
	trigger  *recordingTrigger
}

var (
	analyst = entity.Actor{UserID: "u1", OrgID: "org-1", Role: entity.UserRoleAnalyst}
	player  = entity.Actor{UserID: "u2", OrgID: "org-1", Role: entity.UserRolePlayer}
	admin   = entity.Actor{UserID: "u3", OrgID: "org-1", Role: entity.UserRoleAdmin}
	rival   = entity.Actor{UserID: "u4", OrgID: "org-2", Role: entity.UserRoleAdmin}
)

func newServiceFixture(opts Options) *serviceFixture {
	f := &serviceFixture{
		matches: &memMatches{
			matches:  map[string]*entity.Match{"m1": {ID: "m1", OrgID: "org-1", Title: "Final"}},
			segments: map[string]*entity.Segment{"s1": {ID: "s1", MatchID: "m1", Label: "First half"}},
		},
		notes:    &memNotes{bySegment: map[string]int{}, byMatch: map[string]int{}},
		segments: newSegmentArtifacts(),
		intel:    newMatchArtifacts(),
		gen:      &countingGenerator{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		trigger:  &recordingTrigger{queued: map[string]bool{}},
	}
	f.svc = NewService(f.matches, f.notes, f.segments, f.intel, orgAccess{matches: f.matches}, f.gen, f.trigger, DefaultPolicy, opts)
	return f
}

func TestGetSegmentInsight_AbsentAndEligible(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()

	view, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactAbsent, view.State)
	assert.Nil(t, view.Insight)

	f.notes.setSegment("s1", 3)
	view, err = f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactEligible, view.State)
	assert.Equal(t, 0, f.gen.segmentCalls)
}

func TestGetSegmentInsight_StalenessExample(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()

	f.notes.setSegment("s1", 10)
	res, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
	require.NoError(t, err)
	assert.True(t, res.Regenerated)

	f.notes.setSegment("s1", 13)
	view, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactFresh, view.State)
	assert.False(t, view.IsStale)
	assert.Equal(t, 0, f.trigger.calls)

	f.notes.setSegment("s1", 14)
	for i := 0; i < 3; i++ {
		view, err = f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
		require.NoError(t, err)
		assert.Equal(t, entity.ArtifactStale, view.State)
		assert.True(t, view.IsStale)
		require.NotNil(t, view.Insight)
		assert.Equal(t, 10, view.Insight.NoteCountAtGeneration)
	}
	// 每次过期读都尝试投递，去重由触发器负责
	assert.Equal(t, 3, f.trigger.calls)
	assert.True(t, f.trigger.queued["segment:s1"])

	// 后台任务完成后恢复新鲜
	res, err = f.svc.RegenerateScope(ctx, entity.ScopeSegment, "s1")
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.Equal(t, 1, f.trigger.released)

	view, err = f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactFresh, view.State)
	assert.Equal(t, 14, view.Insight.NoteCountAtGeneration)
}

func TestRegenerate_IdempotentWhenNoDrift(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()
	f.notes.setSegment("s1", 4)

	first, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
	require.NoError(t, err)
	second, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
	require.NoError(t, err)

	assert.True(t, first.Regenerated)
	assert.False(t, second.Regenerated)
	assert.Equal(t, first.ArtifactID, second.ArtifactID)
	assert.Equal(t, 1, f.gen.segmentCalls)
}

func TestRegenerate_NoNotes(t *testing.T) {
	f := newServiceFixture(Options{})
	_, err := f.svc.Regenerate(context.Background(), analyst, entity.ScopeSegment, "s1")
	assert.ErrorIs(t, err, ErrNoNotes)
}

func TestMatchIntelligence_TierExample(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()

	f.notes.setMatch("m1", 24)
	view, err := f.svc.GetMatchIntelligence(ctx, analyst, "m1", true)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactInsufficient, view.State)
	assert.Equal(t, entity.MatchTierInsufficient, view.Tier)
	assert.Equal(t, 0, f.gen.matchCalls)

	_, err = f.svc.Regenerate(ctx, analyst, entity.ScopeMatch, "m1")
	assert.ErrorIs(t, err, ErrInsufficientNotes)
	assert.Equal(t, 0, f.gen.matchCalls)

	f.notes.setMatch("m1", 25)
	view, err = f.svc.GetMatchIntelligence(ctx, analyst, "m1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactEligible, view.State)
	assert.Equal(t, entity.MatchTierStandard, view.Tier)

	view, err = f.svc.GetMatchIntelligence(ctx, analyst, "m1", true)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactFresh, view.State)
	require.NotNil(t, view.Intelligence)
	assert.Equal(t, entity.MatchTierStandard, view.Intelligence.Tier)
	assert.Equal(t, 25, view.Intelligence.NoteCountAtGeneration)
	assert.Equal(t, 1, f.gen.matchCalls)
}

func TestMatchIntelligence_ComprehensiveTier(t *testing.T) {
	f := newServiceFixture(Options{})
	f.notes.setMatch("m1", 120)

	_, err := f.svc.Regenerate(context.Background(), analyst, entity.ScopeMatch, "m1")
	require.NoError(t, err)

	active, found, err := f.intel.GetActive(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entity.MatchTierComprehensive, active.Tier)
}

func TestForceRefresh_GenerationFailureServesCachedValue(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()
	f.notes.setSegment("s1", 5)
	_, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
	require.NoError(t, err)

	f.gen.err = assert.AnError
	view, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactFresh, view.State)
	assert.NotNil(t, view.Insight)
}

func TestPermissionsAndTenancy(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()
	f.notes.setSegment("s1", 5)

	_, err := f.svc.GetSegmentInsight(ctx, player, "s1", true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.GetSegmentInsight(ctx, player, "s1", false)
	assert.NoError(t, err)

	_, err = f.svc.Regenerate(ctx, player, entity.ScopeSegment, "s1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.GetSegmentInsight(ctx, rival, "s1", false)
	assert.ErrorIs(t, err, apperrors.ErrMatchNotFound)

	_, err = f.svc.Reconcile(ctx, analyst, entity.ScopeSegment, "s1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Regenerate(ctx, analyst, entity.ScopeType("team"), "s1")
	assert.ErrorIs(t, err, ErrUnknownScope)
	assert.Equal(t, 0, f.gen.segmentCalls)
}

func TestConcurrentRegenerationKeepsSingleActiveRow(t *testing.T) {
	f := newServiceFixture(Options{})
	f.gen.delay = 2 * time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.notes.setSegment("s1", 1+i%7)
			_, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	counts, err := f.segments.Counts(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Active)
	assert.GreaterOrEqual(t, counts.Total, 1)
}

func TestSharedRegenerationSurvivesFirstCallerCancel(t *testing.T) {
	f := newServiceFixture(Options{})
	f.notes.setSegment("s1", 3)
	f.gen.gate = make(chan struct{})
	f.gen.entered = make(chan struct{}, 1)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.Regenerate(firstCtx, analyst, entity.ScopeSegment, "s1")
		firstErr <- err
	}()
	<-f.gen.entered

	second := make(chan *RegenerationResult, 1)
	go func() {
		res, err := f.svc.Regenerate(context.Background(), analyst, entity.ScopeSegment, "s1")
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(f.gen.gate)
	res := <-second
	require.NotNil(t, res)
	assert.Equal(t, 3, res.NoteCount)

	active, found, err := f.segments.GetActive(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.ArtifactID, active.ID)
	assert.Equal(t, 1, f.gen.segmentCalls)
}

func TestInvariantViolationBlocksReadUntilReconciled(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()
	f.notes.setSegment("s1", 6)

	older := &entity.SegmentInsight{ID: "old", SegmentID: "s1", MatchID: "m1", NoteCountAtGeneration: 3, Active: true, GeneratedAt: time.Unix(100, 0)}
	newer := &entity.SegmentInsight{ID: "new", SegmentID: "s1", MatchID: "m1", NoteCountAtGeneration: 6, Active: true, GeneratedAt: time.Unix(200, 0)}
	f.segments.insert(older, newer)

	_, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	results, err := f.svc.ReconcileAll(ctx, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].ActiveID)

	view, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactFresh, view.State)
	assert.Equal(t, "new", view.Insight.ID)
}

func TestInvariantViolation_NoActiveRow(t *testing.T) {
	f := newServiceFixture(Options{})
	ctx := context.Background()
	f.notes.setSegment("s1", 2)
	f.segments.insert(&entity.SegmentInsight{ID: "orphan", SegmentID: "s1", MatchID: "m1", NoteCountAtGeneration: 2, GeneratedAt: time.Unix(100, 0)})

	_, err := f.svc.GetSegmentInsight(ctx, analyst, "s1", false)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	res, err := f.svc.Reconcile(ctx, admin, entity.ScopeSegment, "s1")
	require.NoError(t, err)
	assert.Equal(t, "orphan", res.ActiveID)
}

func TestHistoryPruning(t *testing.T) {
	f := newServiceFixture(Options{HistoryKeep: 2})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		f.notes.setSegment("s1", i*10)
		_, err := f.svc.Regenerate(ctx, analyst, entity.ScopeSegment, "s1")
		require.NoError(t, err)
	}

	counts, err := f.segments.Counts(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Active)
	assert.Equal(t, 3, counts.Total)
}
