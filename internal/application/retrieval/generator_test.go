package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	wfmodel "match-intel-api/internal/workflow/model"
	wfnode "match-intel-api/internal/workflow/node"
)

type scriptedChain struct {
	results []func(ctx context.Context) (*wfmodel.AnswerOutput, error)
	calls   int
	lastIn  *wfmodel.AnswerInput
}

func (s *scriptedChain) Invoke(ctx context.Context, in *wfmodel.AnswerInput) (*wfmodel.AnswerOutput, error) {
	s.lastIn = in
	fn := s.results[s.calls]
	s.calls++
	return fn(ctx)
}

func okOutput(context.Context) (*wfmodel.AnswerOutput, error) {
	return &wfmodel.AnswerOutput{
		Answer: "Compact mid-block.",
		RecommendedSegments: []wfmodel.AnswerSegmentPointer{
			{SegmentID: "seg-a", Reason: "shape", EvidenceIDs: []string{"n1"}},
			{SegmentID: "seg-x", Reason: "invented"},
		},
	}, nil
}

func testBundle() *Bundle {
	b := AssembleBundle([]entity.Candidate{
		{ID: "note-1", Source: entity.SourceNote, SegmentID: "seg-a", Text: "mid block"},
	}, nil, nil, 0.5, BundleLimits{})
	b.MatchTitle = "Derby"
	return b
}

func fastOpts() GeneratorOptions {
	return GeneratorOptions{Timeout: time.Second, MaxAttempts: 2, RetryDelay: time.Millisecond}
}

func TestLLMGenerator_RetriesOnce(t *testing.T) {
	chain := &scriptedChain{results: []func(context.Context) (*wfmodel.AnswerOutput, error){
		func(context.Context) (*wfmodel.AnswerOutput, error) { return nil, fmt.Errorf("upstream 502") },
		okOutput,
	}}
	g := NewLLMGenerator(chain, fastOpts())

	got, err := g.Generate(context.Background(), "shape?", testBundle())
	require.NoError(t, err)
	assert.Equal(t, 2, chain.calls)
	assert.Equal(t, "Compact mid-block.", got.Answer)
	require.Len(t, got.RecommendedSegments, 1)
	assert.Equal(t, "seg-a", got.RecommendedSegments[0].SegmentID)

	assert.Equal(t, "Derby", chain.lastIn.MatchTitle)
	assert.Contains(t, chain.lastIn.Evidence, "[n1]")
}

func TestLLMGenerator_MalformedOutputAfterRetry(t *testing.T) {
	bad := func(context.Context) (*wfmodel.AnswerOutput, error) {
		return nil, fmt.Errorf("%w: not json", wfnode.ErrMalformedOutput)
	}
	chain := &scriptedChain{results: []func(context.Context) (*wfmodel.AnswerOutput, error){bad, bad}}

	_, err := NewLLMGenerator(chain, fastOpts()).Generate(context.Background(), "q", testBundle())
	assert.ErrorIs(t, err, ErrEmptyGeneration)
	assert.Equal(t, "parse", FailureReason(err))
	assert.Equal(t, 2, chain.calls)
}

func TestLLMGenerator_BlankAnswerIsMalformed(t *testing.T) {
	blank := func(context.Context) (*wfmodel.AnswerOutput, error) { return &wfmodel.AnswerOutput{Answer: "  "}, nil }
	chain := &scriptedChain{results: []func(context.Context) (*wfmodel.AnswerOutput, error){blank, blank}}

	_, err := NewLLMGenerator(chain, fastOpts()).Generate(context.Background(), "q", testBundle())
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

func TestLLMGenerator_Timeout(t *testing.T) {
	slow := func(ctx context.Context) (*wfmodel.AnswerOutput, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	chain := &scriptedChain{results: []func(context.Context) (*wfmodel.AnswerOutput, error){slow, slow}}
	opts := fastOpts()
	opts.Timeout = 10 * time.Millisecond

	_, err := NewLLMGenerator(chain, opts).Generate(context.Background(), "q", testBundle())
	require.Error(t, err)
	assert.Equal(t, "timeout", FailureReason(err))
	assert.Equal(t, 2, chain.calls)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "", FailureReason(nil))
	assert.Equal(t, "llm_error", FailureReason(assert.AnError))
}
