package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"match-intel-api/internal/domain/entity"
	wfmodel "match-intel-api/internal/workflow/model"
	wfnode "match-intel-api/internal/workflow/node"
	"match-intel-api/pkg/logger"
)

const (
	defaultGenerateAttempts = 2
	defaultRetryDelay       = 200 * time.Millisecond
)

// SegmentInsightInvoker 片段洞察链（workflow/chain.SegmentInsightChain）
type SegmentInsightInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.SegmentInsightInput) (*wfmodel.SegmentInsightOutput, error)
}

// MatchIntelligenceInvoker 比赛情报链（workflow/chain.MatchIntelligenceChain）
type MatchIntelligenceInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.MatchIntelligenceInput) (*wfmodel.MatchIntelligenceOutput, error)
}

// TextEmbedder 产物摘要向量化
type TextEmbedder interface {
	Embed(ctx context.Context, text string) (entity.Vector, error)
}

var (
	standardSections      = []string{"Overview", "Key Moments", "Tactical Patterns"}
	comprehensiveSections = []string{"Overview", "Key Moments", "Tactical Patterns", "Player Performances", "Turning Points", "Coaching Recommendations"}
)

// SectionsFor 档位对应的情报段落
func SectionsFor(tier entity.MatchTier) []string {
	if tier == entity.MatchTierComprehensive {
		return comprehensiveSections
	}
	return standardSections
}

// LLMGenerator 调用工作流链生成产物，并为摘要生成向量。
// 每次链调用独立计时，失败后重试一次。
type LLMGenerator struct {
	segments    SegmentInsightInvoker
	matches     MatchIntelligenceInvoker
	embedder    TextEmbedder
	provider    string
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

func NewLLMGenerator(segments SegmentInsightInvoker, matches MatchIntelligenceInvoker, embedder TextEmbedder, provider string, timeout time.Duration) *LLMGenerator {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &LLMGenerator{
		segments:    segments,
		matches:     matches,
		embedder:    embedder,
		provider:    provider,
		timeout:     timeout,
		maxAttempts: defaultGenerateAttempts,
		retryDelay:  defaultRetryDelay,
		now:         time.Now,
	}
}

func (g *LLMGenerator) SegmentInsight(ctx context.Context, match *entity.Match, seg *entity.Segment, notes []*entity.Note) (*entity.SegmentInsight, error) {
	in := &wfmodel.SegmentInsightInput{
		LLMOptions:   wfmodel.LLMOptions{Provider: g.provider},
		MatchTitle:   match.Title,
		SegmentLabel: seg.Label,
		Notes:        noteLines(notes),
	}
	out, err := invokeWithRetry(ctx, g, "segment_insight", func(callCtx context.Context) (*wfmodel.SegmentInsightOutput, error) {
		res, err := g.segments.Invoke(callCtx, in)
		if err == nil && (res == nil || strings.TrimSpace(res.Headline) == "" || strings.TrimSpace(res.Sentence) == "") {
			err = fmt.Errorf("%w: headline and sentence are required", wfnode.ErrMalformedOutput)
		}
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("generate segment insight: %w", err)
	}

	ins := &entity.SegmentInsight{
		ID:          uuid.NewString(),
		SegmentID:   seg.ID,
		MatchID:     match.ID,
		Headline:    strings.TrimSpace(out.Headline),
		Sentence:    strings.TrimSpace(out.Sentence),
		GeneratedAt: g.now().UTC(),
	}
	if n := strings.TrimSpace(out.Narrative); n != "" {
		ins.Narrative = &n
	}
	ins.Embedding = g.embed(ctx, ins.SummaryText())
	return ins, nil
}

func (g *LLMGenerator) MatchIntelligence(ctx context.Context, match *entity.Match, tier entity.MatchTier, notes []*entity.Note) (*entity.MatchIntelligence, error) {
	in := &wfmodel.MatchIntelligenceInput{
		LLMOptions: wfmodel.LLMOptions{Provider: g.provider},
		MatchTitle: match.Title,
		Tier:       string(tier),
		Sections:   SectionsFor(tier),
		Notes:      noteLines(notes),
	}
	out, err := invokeWithRetry(ctx, g, "match_intelligence", func(callCtx context.Context) (*wfmodel.MatchIntelligenceOutput, error) {
		res, err := g.matches.Invoke(callCtx, in)
		if err == nil && (res == nil || strings.TrimSpace(res.Headline) == "" || strings.TrimSpace(res.Summary) == "") {
			err = fmt.Errorf("%w: headline and summary are required", wfnode.ErrMalformedOutput)
		}
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("generate match intelligence: %w", err)
	}

	mi := &entity.MatchIntelligence{
		ID:          uuid.NewString(),
		MatchID:     match.ID,
		Tier:        tier,
		Headline:    strings.TrimSpace(out.Headline),
		Summary:     strings.TrimSpace(out.Summary),
		GeneratedAt: g.now().UTC(),
	}
	sections := make([]entity.IntelSection, 0, len(out.Sections))
	for _, s := range out.Sections {
		if strings.TrimSpace(s.Body) == "" {
			continue
		}
		sections = append(sections, entity.IntelSection{Name: strings.TrimSpace(s.Name), Body: strings.TrimSpace(s.Body)})
	}
	if err := mi.SetSections(sections); err != nil {
		return nil, err
	}
	mi.Embedding = g.embed(ctx, mi.SummaryText())
	return mi, nil
}

// invokeWithRetry 每次尝试单独套超时；父 context 结束后不再重试
func invokeWithRetry[T any](ctx context.Context, g *LLMGenerator, kind string, call func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		res, err := call(callCtx)
		if err != nil {
			var zero T
			if ctx.Err() != nil {
				return zero, backoff.Permanent(ctx.Err())
			}
			logger.Warn(ctx, "artifact generation attempt failed",
				"kind", kind,
				"attempt", attempt,
				"error", err.Error(),
			)
			return zero, err
		}
		return res, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(g.retryDelay)),
		backoff.WithMaxTries(uint(g.maxAttempts)),
	)
}

// embed 失败时返回 nil：产物照常保存，只是不参与语义检索
func (g *LLMGenerator) embed(ctx context.Context, text string) entity.Vector {
	if g.embedder == nil {
		return nil
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn(ctx, "artifact embedding failed, storing without vector", "error", err.Error())
		return nil
	}
	return vec
}

func noteLines(notes []*entity.Note) []wfmodel.NoteLine {
	lines := make([]wfmodel.NoteLine, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, wfmodel.NoteLine{ID: n.ID, SegmentID: n.SegmentID, Text: n.Text()})
	}
	return lines
}
