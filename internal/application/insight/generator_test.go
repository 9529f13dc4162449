package insight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	wfmodel "match-intel-api/internal/workflow/model"
)

// errs 按调用顺序依次返回，耗尽后返回 out
type stubSegmentChain struct {
	out   *wfmodel.SegmentInsightOutput
	errs  []error
	seen  *wfmodel.SegmentInsightInput
	calls int
}

func (s *stubSegmentChain) Invoke(_ context.Context, in *wfmodel.SegmentInsightInput) (*wfmodel.SegmentInsightOutput, error) {
	s.calls++
	s.seen = in
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return s.out, nil
}

type stubMatchChain struct {
	out   *wfmodel.MatchIntelligenceOutput
	errs  []error
	seen  *wfmodel.MatchIntelligenceInput
	calls int
}

func (s *stubMatchChain) Invoke(_ context.Context, in *wfmodel.MatchIntelligenceInput) (*wfmodel.MatchIntelligenceOutput, error) {
	s.calls++
	s.seen = in
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return s.out, nil
}

func fastRetry(g *LLMGenerator) *LLMGenerator {
	g.retryDelay = time.Millisecond
	return g
}

type stubEmbedder struct{ err error }

func (e stubEmbedder) Embed(context.Context, string) (entity.Vector, error) {
	if e.err != nil {
		return nil, e.err
	}
	return entity.Vector{0.5, 0.5}, nil
}

func TestLLMGenerator_SegmentInsight(t *testing.T) {
	chain := &stubSegmentChain{out: &wfmodel.SegmentInsightOutput{Headline: " Press ", Sentence: "They pressed.", Narrative: ""}}
	g := NewLLMGenerator(chain, nil, stubEmbedder{}, "openai", time.Second)

	notes := []*entity.Note{{ID: "n1", SegmentID: "s1", RawText: "raw"}}
	ins, err := g.SegmentInsight(context.Background(), &entity.Match{ID: "m1", Title: "Final"}, &entity.Segment{ID: "s1", Label: "H1"}, notes)
	require.NoError(t, err)

	assert.Equal(t, "Press", ins.Headline)
	assert.Nil(t, ins.Narrative)
	assert.Equal(t, entity.Vector{0.5, 0.5}, ins.Embedding)
	assert.NotEmpty(t, ins.ID)
	assert.Equal(t, "openai", chain.seen.Provider)
	require.Len(t, chain.seen.Notes, 1)
	assert.Equal(t, "s1", chain.seen.Notes[0].SegmentID)
}

func TestLLMGenerator_SegmentInsightRequiresFields(t *testing.T) {
	chain := &stubSegmentChain{out: &wfmodel.SegmentInsightOutput{Headline: "only headline"}}
	g := fastRetry(NewLLMGenerator(chain, nil, nil, "", time.Second))
	_, err := g.SegmentInsight(context.Background(), &entity.Match{ID: "m1"}, &entity.Segment{ID: "s1"}, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, chain.calls)
}

func TestLLMGenerator_SegmentInsightRetriesOnce(t *testing.T) {
	chain := &stubSegmentChain{
		out:  &wfmodel.SegmentInsightOutput{Headline: "Press", Sentence: "They pressed."},
		errs: []error{errors.New("transient 503")},
	}
	g := fastRetry(NewLLMGenerator(chain, nil, nil, "", time.Second))

	ins, err := g.SegmentInsight(context.Background(), &entity.Match{ID: "m1"}, &entity.Segment{ID: "s1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Press", ins.Headline)
	assert.Equal(t, 2, chain.calls)

	chain = &stubSegmentChain{errs: []error{errors.New("503"), errors.New("503 again"), errors.New("never reached")}}
	g = fastRetry(NewLLMGenerator(chain, nil, nil, "", time.Second))
	_, err = g.SegmentInsight(context.Background(), &entity.Match{ID: "m1"}, &entity.Segment{ID: "s1"}, nil)
	assert.ErrorContains(t, err, "503 again")
	assert.Equal(t, 2, chain.calls)
}

func TestLLMGenerator_NoRetryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chain := &stubSegmentChain{errs: []error{context.Canceled}}
	g := fastRetry(NewLLMGenerator(chain, nil, nil, "", time.Second))

	_, err := g.SegmentInsight(ctx, &entity.Match{ID: "m1"}, &entity.Segment{ID: "s1"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, chain.calls, 1)
}

func TestLLMGenerator_MatchIntelligenceRetriesOnce(t *testing.T) {
	chain := &stubMatchChain{
		out:  &wfmodel.MatchIntelligenceOutput{Headline: "Control", Summary: "Dominant."},
		errs: []error{errors.New("transient 503")},
	}
	g := fastRetry(NewLLMGenerator(nil, chain, nil, "", time.Second))

	mi, err := g.MatchIntelligence(context.Background(), &entity.Match{ID: "m1"}, entity.MatchTierStandard, nil)
	require.NoError(t, err)
	assert.Equal(t, "Control", mi.Headline)
	assert.Equal(t, 2, chain.calls)
}

func TestLLMGenerator_MatchIntelligence(t *testing.T) {
	chain := &stubMatchChain{out: &wfmodel.MatchIntelligenceOutput{
		Headline: "Control",
		Summary:  "Dominant.",
		Sections: []wfmodel.IntelligenceSection{{Name: "Overview", Body: "x"}, {Name: "Empty", Body: " "}},
	}}
	g := NewLLMGenerator(nil, chain, stubEmbedder{err: assert.AnError}, "", time.Second)

	mi, err := g.MatchIntelligence(context.Background(), &entity.Match{ID: "m1"}, entity.MatchTierComprehensive, nil)
	require.NoError(t, err)

	sections, err := mi.DecodeSections()
	require.NoError(t, err)
	assert.Equal(t, []entity.IntelSection{{Name: "Overview", Body: "x"}}, sections)
	assert.Nil(t, mi.Embedding)
	assert.Equal(t, string(entity.MatchTierComprehensive), chain.seen.Tier)
	assert.Equal(t, comprehensiveSections, chain.seen.Sections)
}
