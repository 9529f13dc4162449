// Package retrieval 比赛解说问答：多路召回、证据装配、门控与生成
package retrieval

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	"match-intel-api/pkg/logger"
	"match-intel-api/pkg/metrics"
)

const (
	// InsufficientEvidenceMessage 证据不足时的固定回复
	InsufficientEvidenceMessage = "There isn't enough recorded commentary on this match to answer that yet. Try a broader question or add more notes."
	// GenerationFailureMessage 生成失败时的固定回复
	GenerationFailureMessage = "We found relevant commentary but could not compose an answer right now. The supporting evidence is listed below."
)

// Corpora 语义检索的三类语料
type Corpora struct {
	Notes        repository.VectorSearcher
	Insights     repository.VectorSearcher
	Intelligence repository.VectorSearcher
}

// EngineOptions 问答引擎参数
type EngineOptions struct {
	DefaultKNotes    int
	DefaultKInsights int
	MaxKNotes        int
	MaxKInsights     int
	Limits           BundleLimits
	Gate             GatePolicy
}

// QuestionInput answer_question 入参，K 为 0 时使用默认值
type QuestionInput struct {
	MatchID   string
	Query     string
	KNotes    int
	KInsights int
}

// Engine 问答编排
type Engine struct {
	access    AccessChecker
	embedder  QueryEmbedder
	semantic  *SemanticRetriever
	lexical   *LexicalRetriever
	corpora   Corpora
	generator AnswerGenerator
	opts      EngineOptions
}

func NewEngine(
	access AccessChecker,
	embedder QueryEmbedder,
	semantic *SemanticRetriever,
	lexical *LexicalRetriever,
	corpora Corpora,
	generator AnswerGenerator,
	opts EngineOptions,
) *Engine {
	if opts.DefaultKNotes <= 0 {
		opts.DefaultKNotes = 20
	}
	if opts.DefaultKInsights <= 0 {
		opts.DefaultKInsights = 10
	}
	if opts.Gate == (GatePolicy{}) {
		opts.Gate = DefaultGatePolicy
	}
	return &Engine{
		access:    access,
		embedder:  embedder,
		semantic:  semantic,
		lexical:   lexical,
		corpora:   corpora,
		generator: generator,
		opts:      opts,
	}
}

// recall 四路召回结果
type recall struct {
	semNotes, lexNotes, insights, intel  []entity.Candidate
	semErr, lexErr, insightErr, intelErr error
}

// Answer 回答关于一场比赛的问题。
// 证据不足或生成失败时返回降级回答而非错误；只有租户校验失败和检索完全不可用时返回错误。
func (e *Engine) Answer(ctx context.Context, actor entity.Actor, in QuestionInput) (*entity.Answer, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	kNotes := clampK(in.KNotes, e.opts.DefaultKNotes, e.opts.MaxKNotes)
	kInsights := clampK(in.KInsights, e.opts.DefaultKInsights, e.opts.MaxKInsights)

	match, err := e.access.CheckMatch(ctx, actor, in.MatchID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.MatchIDKey, match.ID)

	// embedding 必须先于扇出完成
	degraded := false
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		degraded = true
		logger.Warn(ctx, "query embedding unavailable, lexical-only retrieval", "error", err.Error())
	}

	r := e.fanOut(ctx, match.ID, query, vec, degraded, kNotes, kInsights)
	if r.lexErr != nil && (degraded || r.semErr != nil) {
		logger.Error(ctx, "note retrieval unavailable", r.lexErr, "semantic_error", errString(r.semErr))
		return nil, ErrRetrievalUnavailable
	}
	for corpus, perr := range map[string]error{
		"note_semantic":      r.semErr,
		"note_lexical":       r.lexErr,
		"segment_insight":    r.insightErr,
		"match_intelligence": r.intelErr,
	} {
		if perr != nil {
			logger.Warn(ctx, "partial retrieval failure", "corpus", corpus, "error", perr.Error())
		}
	}

	notes := MergeCandidates(kNotes, r.semNotes, r.lexNotes)
	best := bestScore(r.semNotes, r.insights)
	bundle := AssembleBundle(notes, r.insights, r.intel, best, e.opts.Limits)
	bundle.MatchTitle = match.Title

	decision := e.opts.Gate.Decide(bundle.Count, best, degraded)
	metrics.AnswerEvidenceCount.Observe(float64(bundle.Count))

	if !decision.Proceed {
		logger.Info(ctx, "answer skipped",
			"outcome", entity.OutcomeInsufficientEvidence,
			"evidence_count", bundle.Count,
			"best_score", best,
			"degraded", degraded,
		)
		return e.finish(fallbackAnswer(InsufficientEvidenceMessage, entity.OutcomeInsufficientEvidence, bundle, degraded)), nil
	}

	gen, err := e.generator.Generate(ctx, query, bundle)
	if err != nil {
		logger.Error(ctx, "answer generation failed", err,
			"outcome", entity.OutcomeGenerationFailure,
			"reason", FailureReason(err),
			"evidence_count", bundle.Count,
		)
		return e.finish(fallbackAnswer(GenerationFailureMessage, entity.OutcomeGenerationFailure, bundle, degraded)), nil
	}

	logger.Info(ctx, "answer generated",
		"outcome", entity.OutcomeAnswered,
		"confidence", decision.Confidence,
		"evidence_count", bundle.Count,
		"degraded", degraded,
	)
	return e.finish(&entity.Answer{
		Answer:              gen.Answer,
		KeyPoints:           gen.KeyPoints,
		RecommendedSegments: gen.RecommendedSegments,
		Confidence:          decision.Confidence,
		Evidence:            bundle.EvidenceItems(),
		Outcome:             entity.OutcomeAnswered,
		Degraded:            degraded,
	}), nil
}

// fanOut 并发召回。单路失败只记录错误，不取消其它分支。
// degraded 时跳过所有仅支持语义检索的语料。
func (e *Engine) fanOut(ctx context.Context, matchID, query string, vec entity.Vector, degraded bool, kNotes, kInsights int) recall {
	var (
		r recall
		g errgroup.Group
	)
	capNotes := 2 * kNotes

	if !degraded {
		g.Go(func() error {
			r.semNotes, r.semErr = e.semantic.Retrieve(ctx, e.corpora.Notes, matchID, vec, capNotes)
			return nil
		})
		if e.corpora.Insights != nil {
			g.Go(func() error {
				r.insights, r.insightErr = e.semantic.Retrieve(ctx, e.corpora.Insights, matchID, vec, kInsights)
				return nil
			})
		}
		if e.corpora.Intelligence != nil {
			g.Go(func() error {
				r.intel, r.intelErr = e.semantic.Retrieve(ctx, e.corpora.Intelligence, matchID, vec, 1)
				return nil
			})
		}
	}
	g.Go(func() error {
		r.lexNotes, r.lexErr = e.lexical.Retrieve(ctx, matchID, query, capNotes)
		return nil
	})

	_ = g.Wait()
	return r
}

func (e *Engine) finish(a *entity.Answer) *entity.Answer {
	metrics.AnswerOutcomeTotal.WithLabelValues(string(a.Outcome)).Inc()
	metrics.AnswerConfidenceTotal.WithLabelValues(string(a.Confidence), strconv.FormatBool(a.Degraded)).Inc()
	return a
}

func fallbackAnswer(msg string, outcome entity.AnswerOutcome, b *Bundle, degraded bool) *entity.Answer {
	return &entity.Answer{
		Answer:              msg,
		KeyPoints:           []entity.KeyPoint{},
		RecommendedSegments: []entity.RecommendedSegment{},
		Confidence:          entity.ConfidenceLow,
		Evidence:            b.EvidenceItems(),
		Outcome:             outcome,
		Degraded:            degraded,
	}
}

func clampK(k, def, max int) int {
	if k <= 0 {
		k = def
	}
	if max > 0 && k > max {
		k = max
	}
	return k
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
