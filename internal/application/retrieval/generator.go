package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"match-intel-api/internal/domain/entity"
	wfmodel "match-intel-api/internal/workflow/model"
	wfnode "match-intel-api/internal/workflow/node"
	"match-intel-api/pkg/logger"
)

// AnswerInvoker 问答链（workflow/chain.AnswerChain）
type AnswerInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.AnswerInput) (*wfmodel.AnswerOutput, error)
}

// GeneratorOptions LLM 生成参数
type GeneratorOptions struct {
	Provider    string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// LLMGenerator 带超时与一次重试的问答生成器
type LLMGenerator struct {
	chain AnswerInvoker
	opts  GeneratorOptions
}

func NewLLMGenerator(chain AnswerInvoker, opts GeneratorOptions) *LLMGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	return &LLMGenerator{chain: chain, opts: opts}
}

// Generate 调用模型并过滤不在证据包中的片段与证据引用。
// 每次尝试独立计时；父 context 结束后不再重试。
func (g *LLMGenerator) Generate(ctx context.Context, question string, bundle *Bundle) (*GeneratedAnswer, error) {
	in := &wfmodel.AnswerInput{
		LLMOptions: wfmodel.LLMOptions{Provider: g.opts.Provider},
		MatchTitle: bundle.MatchTitle,
		Question:   question,
		Evidence:   bundle.PromptContext(),
	}

	attempt := 0
	out, err := backoff.Retry(ctx, func() (*wfmodel.AnswerOutput, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()

		res, err := g.chain.Invoke(callCtx, in)
		if err == nil && (res == nil || strings.TrimSpace(res.Answer) == "") {
			err = fmt.Errorf("%w: blank answer", wfnode.ErrMalformedOutput)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			logger.Warn(ctx, "answer generation attempt failed",
				"attempt", attempt,
				"reason", FailureReason(err),
				"error", err.Error(),
			)
			return nil, err
		}
		return res, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(g.opts.RetryDelay)),
		backoff.WithMaxTries(uint(g.opts.MaxAttempts)),
	)
	if err != nil {
		if errors.Is(err, wfnode.ErrMalformedOutput) {
			return nil, fmt.Errorf("%w: %v", ErrEmptyGeneration, err)
		}
		return nil, err
	}

	return FilterGenerated(toGenerated(out), bundle), nil
}

// FailureReason 将生成错误归类：timeout / parse / llm_error
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyGeneration), errors.Is(err, wfnode.ErrMalformedOutput):
		return "parse"
	default:
		return "llm_error"
	}
}

func toGenerated(out *wfmodel.AnswerOutput) *GeneratedAnswer {
	g := &GeneratedAnswer{
		Answer:              out.Answer,
		KeyPoints:           make([]entity.KeyPoint, 0, len(out.KeyPoints)),
		RecommendedSegments: make([]entity.RecommendedSegment, 0, len(out.RecommendedSegments)),
	}
	for _, kp := range out.KeyPoints {
		g.KeyPoints = append(g.KeyPoints, entity.KeyPoint{Text: kp.Text, EvidenceIDs: kp.EvidenceIDs})
	}
	for _, rs := range out.RecommendedSegments {
		g.RecommendedSegments = append(g.RecommendedSegments, entity.RecommendedSegment{
			SegmentID:   rs.SegmentID,
			Reason:      rs.Reason,
			EvidenceIDs: rs.EvidenceIDs,
		})
	}
	return g
}
