package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/logger"
	"match-intel-api/pkg/metrics"
)

// Options 服务参数
type Options struct {
	// HistoryKeep 每个作用域保留的历史停用行数，<=0 不清理
	HistoryKeep int
	// MaxNotes 单次生成送入模型的最多笔记数
	MaxNotes int
	// FlightTimeout 一次重新生成（含重试与写库）的总时限
	FlightTimeout time.Duration
}

// SegmentInsightView get_segment_insight 的返回
type SegmentInsightView struct {
	State     entity.ArtifactState
	SegmentID string
	NoteCount int
	Insight   *entity.SegmentInsight
	IsStale   bool
}

// MatchIntelligenceView get_match_intelligence 的返回；Tier 为当前语料档位
type MatchIntelligenceView struct {
	State        entity.ArtifactState
	MatchID      string
	NoteCount    int
	Tier         entity.MatchTier
	Intelligence *entity.MatchIntelligence
	IsStale      bool
}

// RegenerationResult regenerate 的返回；Regenerated=false 表示已是最新，未调用模型
type RegenerationResult struct {
	Scope       entity.ScopeType
	ScopeID     string
	Regenerated bool
	ArtifactID  string
	NoteCount   int
}

// ReconcileResult 单个作用域的修复结果
type ReconcileResult struct {
	Scope    entity.ScopeType
	ScopeID  string
	ActiveID string
}

// Service 缓存产物读取、重新生成与修复
type Service struct {
	matches   repository.MatchRepository
	notes     repository.NoteRepository
	segments  repository.SegmentInsightRepository
	intel     repository.MatchIntelligenceRepository
	access    AccessChecker
	generator ArtifactGenerator
	trigger   RegenerationTrigger
	policy    Policy
	opts      Options

	flight singleflight.Group
}

func NewService(
	matches repository.MatchRepository,
	notes repository.NoteRepository,
	segments repository.SegmentInsightRepository,
	intel repository.MatchIntelligenceRepository,
	access AccessChecker,
	generator ArtifactGenerator,
	trigger RegenerationTrigger,
	policy Policy,
	opts Options,
) *Service {
	if opts.MaxNotes <= 0 {
		opts.MaxNotes = 400
	}
	if opts.FlightTimeout <= 0 {
		opts.FlightTimeout = 4 * time.Minute
	}
	return &Service{
		matches:   matches,
		notes:     notes,
		segments:  segments,
		intel:     intel,
		access:    access,
		generator: generator,
		trigger:   trigger,
		policy:    policy,
		opts:      opts,
	}
}

// GetSegmentInsight 读取片段洞察；过期时仍返回旧值并异步触发重新生成
func (s *Service) GetSegmentInsight(ctx context.Context, actor entity.Actor, segmentID string, forceRefresh bool) (*SegmentInsightView, error) {
	match, seg, err := s.access.CheckSegment(ctx, actor, segmentID)
	if err != nil {
		return nil, err
	}
	if forceRefresh && !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	ctx = logger.WithContext(ctx, logger.MatchIDKey, match.ID)

	if forceRefresh {
		s.forceRefresh(ctx, entity.ScopeSegment, seg.ID, func() error {
			_, err := s.regenerateSegment(ctx, match, seg, true)
			return err
		})
	}

	count, err := s.notes.CountBySegment(ctx, seg.ID)
	if err != nil {
		return nil, err
	}
	active, found, err := readActive[*entity.SegmentInsight](ctx, s.segments, entity.ScopeSegment, seg.ID)
	if err != nil {
		return nil, err
	}

	view := &SegmentInsightView{SegmentID: seg.ID, NoteCount: count}
	var art entity.CachedArtifact
	if found {
		view.Insight = active
		art = active
	}
	view.State = s.policy.Evaluate(entity.ScopeSegment, count, art)
	view.IsStale = view.State == entity.ArtifactStale
	if view.IsStale {
		s.triggerAsync(ctx, match, entity.ScopeSegment, seg.ID)
	}

	metrics.ArtifactReadsTotal.WithLabelValues(string(entity.ScopeSegment), string(view.State)).Inc()
	return view, nil
}

// GetMatchIntelligence 读取比赛情报；笔记不足 MatchMinNotes 时即使强制刷新也不生成
func (s *Service) GetMatchIntelligence(ctx context.Context, actor entity.Actor, matchID string, forceRefresh bool) (*MatchIntelligenceView, error) {
	match, err := s.access.CheckMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if forceRefresh && !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	ctx = logger.WithContext(ctx, logger.MatchIDKey, match.ID)

	if forceRefresh {
		s.forceRefresh(ctx, entity.ScopeMatch, match.ID, func() error {
			_, err := s.regenerateMatch(ctx, match, true)
			return err
		})
	}

	count, err := s.notes.CountByMatch(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	active, found, err := readActive[*entity.MatchIntelligence](ctx, s.intel, entity.ScopeMatch, match.ID)
	if err != nil {
		return nil, err
	}

	view := &MatchIntelligenceView{MatchID: match.ID, NoteCount: count, Tier: s.policy.Tier(count)}
	var art entity.CachedArtifact
	if found {
		view.Intelligence = active
		art = active
	}
	view.State = s.policy.Evaluate(entity.ScopeMatch, count, art)
	view.IsStale = view.State == entity.ArtifactStale
	if view.IsStale {
		s.triggerAsync(ctx, match, entity.ScopeMatch, match.ID)
	}

	metrics.ArtifactReadsTotal.WithLabelValues(string(entity.ScopeMatch), string(view.State)).Inc()
	return view, nil
}

// Regenerate 显式重新生成；产物已覆盖当前全部笔记时为空操作
func (s *Service) Regenerate(ctx context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*RegenerationResult, error) {
	if !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	switch scope {
	case entity.ScopeSegment:
		match, seg, err := s.access.CheckSegment(ctx, actor, scopeID)
		if err != nil {
			return nil, err
		}
		return s.regenerateSegment(logger.WithContext(ctx, logger.MatchIDKey, match.ID), match, seg, false)
	case entity.ScopeMatch:
		match, err := s.access.CheckMatch(ctx, actor, scopeID)
		if err != nil {
			return nil, err
		}
		return s.regenerateMatch(logger.WithContext(ctx, logger.MatchIDKey, match.ID), match, false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// RegenerateScope 后台任务入口（队列消费者、运维命令），不做租户校验
func (s *Service) RegenerateScope(ctx context.Context, scope entity.ScopeType, scopeID string) (*RegenerationResult, error) {
	if s.trigger != nil {
		defer func() {
			if err := s.trigger.Release(ctx, scope, scopeID); err != nil {
				logger.Warn(ctx, "failed to release regeneration marker", "scope", scope, "scope_id", scopeID, "error", err.Error())
			}
		}()
	}

	switch scope {
	case entity.ScopeSegment:
		seg, err := s.matches.GetSegment(ctx, scopeID)
		if err != nil {
			return nil, err
		}
		if seg == nil {
			return nil, apperrors.ErrSegmentNotFound
		}
		match, err := s.loadMatch(ctx, seg.MatchID)
		if err != nil {
			return nil, err
		}
		return s.regenerateSegment(logger.WithContext(ctx, logger.MatchIDKey, match.ID), match, seg, false)
	case entity.ScopeMatch:
		match, err := s.loadMatch(ctx, scopeID)
		if err != nil {
			return nil, err
		}
		return s.regenerateMatch(logger.WithContext(ctx, logger.MatchIDKey, match.ID), match, false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

// Reconcile 管理员修复单个作用域
func (s *Service) Reconcile(ctx context.Context, actor entity.Actor, scope entity.ScopeType, scopeID string) (*ReconcileResult, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	switch scope {
	case entity.ScopeSegment:
		if _, _, err := s.access.CheckSegment(ctx, actor, scopeID); err != nil {
			return nil, err
		}
	case entity.ScopeMatch:
		if _, err := s.access.CheckMatch(ctx, actor, scopeID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	return s.reconcile(ctx, scope, scopeID)
}

// ReconcileAll 扫描并修复所有违反单激活行约束的作用域，返回修复数量
func (s *Service) ReconcileAll(ctx context.Context, limit int) ([]ReconcileResult, error) {
	var out []ReconcileResult
	for _, scope := range []entity.ScopeType{entity.ScopeSegment, entity.ScopeMatch} {
		var (
			ids []string
			err error
		)
		if scope == entity.ScopeSegment {
			ids, err = s.segments.ListViolations(ctx, limit)
		} else {
			ids, err = s.intel.ListViolations(ctx, limit)
		}
		if err != nil {
			return out, fmt.Errorf("list %s violations: %w", scope, err)
		}
		for _, id := range ids {
			res, err := s.reconcile(ctx, scope, id)
			if err != nil {
				return out, err
			}
			out = append(out, *res)
		}
	}
	return out, nil
}

func (s *Service) reconcile(ctx context.Context, scope entity.ScopeType, scopeID string) (*ReconcileResult, error) {
	res := &ReconcileResult{Scope: scope, ScopeID: scopeID}
	var (
		art   entity.CachedArtifact
		found bool
		err   error
	)
	if scope == entity.ScopeSegment {
		var ins *entity.SegmentInsight
		ins, found, err = s.segments.Reconcile(ctx, scopeID)
		art = ins
	} else {
		var mi *entity.MatchIntelligence
		mi, found, err = s.intel.Reconcile(ctx, scopeID)
		art = mi
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile %s %s: %w", scope, scopeID, err)
	}
	if found {
		res.ActiveID = art.ArtifactID()
	}
	logger.Warn(ctx, "cache scope reconciled",
		"scope", scope,
		"scope_id", scopeID,
		"active_id", res.ActiveID,
	)
	return res, nil
}

func (s *Service) regenerateSegment(ctx context.Context, match *entity.Match, seg *entity.Segment, force bool) (*RegenerationResult, error) {
	key := fmt.Sprintf("%s:%s:%t", entity.ScopeSegment, seg.ID, force)
	return s.shared(ctx, key, func(ctx context.Context) (*RegenerationResult, error) {
		count, err := s.notes.CountBySegment(ctx, seg.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNoNotes
		}

		active, found, err := s.segments.GetActive(ctx, seg.ID)
		if err != nil {
			return nil, err
		}
		if found && !force && Drift(count, active.NoteCountAtGeneration) == 0 {
			return &RegenerationResult{Scope: entity.ScopeSegment, ScopeID: seg.ID, ArtifactID: active.ID, NoteCount: count}, nil
		}

		notes, err := s.notes.ListBySegment(ctx, seg.ID, s.opts.MaxNotes)
		if err != nil {
			return nil, err
		}
		ins, err := s.generator.SegmentInsight(ctx, match, seg, notes)
		if err != nil {
			metrics.ArtifactRegenerationsTotal.WithLabelValues(string(entity.ScopeSegment), "failed").Inc()
			return nil, err
		}
		ins.NoteCountAtGeneration = count
		if err := activate[*entity.SegmentInsight](ctx, s.segments, ins, s.opts.HistoryKeep); err != nil {
			return nil, err
		}
		return &RegenerationResult{Scope: entity.ScopeSegment, ScopeID: seg.ID, Regenerated: true, ArtifactID: ins.ID, NoteCount: count}, nil
	})
}

func (s *Service) regenerateMatch(ctx context.Context, match *entity.Match, force bool) (*RegenerationResult, error) {
	key := fmt.Sprintf("%s:%s:%t", entity.ScopeMatch, match.ID, force)
	return s.shared(ctx, key, func(ctx context.Context) (*RegenerationResult, error) {
		count, err := s.notes.CountByMatch(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNoNotes
		}
		tier := s.policy.Tier(count)
		if tier == entity.MatchTierInsufficient {
			return nil, ErrInsufficientNotes
		}

		active, found, err := s.intel.GetActive(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		if found && !force && Drift(count, active.NoteCountAtGeneration) == 0 {
			return &RegenerationResult{Scope: entity.ScopeMatch, ScopeID: match.ID, ArtifactID: active.ID, NoteCount: count}, nil
		}

		notes, err := s.notes.ListByMatch(ctx, match.ID, s.opts.MaxNotes)
		if err != nil {
			return nil, err
		}
		mi, err := s.generator.MatchIntelligence(ctx, match, tier, notes)
		if err != nil {
			metrics.ArtifactRegenerationsTotal.WithLabelValues(string(entity.ScopeMatch), "failed").Inc()
			return nil, err
		}
		mi.NoteCountAtGeneration = count
		if err := activate[*entity.MatchIntelligence](ctx, s.intel, mi, s.opts.HistoryKeep); err != nil {
			return nil, err
		}
		return &RegenerationResult{Scope: entity.ScopeMatch, ScopeID: match.ID, Regenerated: true, ArtifactID: mi.ID, NoteCount: count}, nil
	})
}

// shared 合并同一作用域的并发重新生成。
// 生成在脱离调用方取消的 context 上执行，单个调用方断开不影响其他等待者。
func (s *Service) shared(ctx context.Context, key string, fn func(ctx context.Context) (*RegenerationResult, error)) (*RegenerationResult, error) {
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FlightTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*RegenerationResult), nil
	}
}

// forceRefresh 同步重新生成；失败时记录日志并继续返回当前状态
func (s *Service) forceRefresh(ctx context.Context, scope entity.ScopeType, scopeID string, regenerate func() error) {
	err := regenerate()
	switch {
	case err == nil:
	case errors.Is(err, ErrNoNotes), errors.Is(err, ErrInsufficientNotes):
		logger.Info(ctx, "forced refresh skipped", "scope", scope, "scope_id", scopeID, "reason", err.Error())
	default:
		logger.Error(ctx, "forced refresh failed, serving cached state", err, "scope", scope, "scope_id", scopeID)
	}
}

// triggerAsync 过期读取时投递后台重新生成；没有队列时在进程内执行
func (s *Service) triggerAsync(ctx context.Context, match *entity.Match, scope entity.ScopeType, scopeID string) {
	if s.trigger == nil {
		bg := context.WithoutCancel(ctx)
		go func() {
			if _, err := s.RegenerateScope(bg, scope, scopeID); err != nil {
				logger.Error(bg, "background regeneration failed", err, "scope", scope, "scope_id", scopeID)
			}
		}()
		return
	}
	queued, err := s.trigger.Trigger(ctx, match.OrgID, match.ID, scope, scopeID)
	if err != nil {
		logger.Warn(ctx, "failed to queue regeneration", "scope", scope, "scope_id", scopeID, "error", err.Error())
		return
	}
	if queued {
		logger.Info(ctx, "stale artifact queued for regeneration", "scope", scope, "scope_id", scopeID)
	}
}

func (s *Service) loadMatch(ctx context.Context, id string) (*entity.Match, error) {
	match, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, apperrors.ErrMatchNotFound
	}
	return match, nil
}

// readActive 读取激活行前先校验行数；违反约束时告警并拒绝读取，直到显式修复
func readActive[T entity.CachedArtifact](ctx context.Context, repo repository.ArtifactRepository[T], scope entity.ScopeType, scopeID string) (T, bool, error) {
	var zero T
	counts, err := repo.Counts(ctx, scopeID)
	if err != nil {
		return zero, false, err
	}
	if counts.Violated() {
		metrics.ArtifactInvariantViolations.WithLabelValues(string(scope)).Inc()
		logger.Error(ctx, "cache invariant violated", ErrInvariantViolation,
			"alert", "cache_invariant_violation",
			"scope", scope,
			"scope_id", scopeID,
			"active_rows", counts.Active,
			"total_rows", counts.Total,
		)
		return zero, false, fmt.Errorf("%w: %s %s has %d active rows", ErrInvariantViolation, scope, scopeID, counts.Active)
	}
	if counts.Active == 0 {
		return zero, false, nil
	}
	return repo.GetActive(ctx, scopeID)
}

// activate 原子替换激活行，随后清理超出保留数量的历史
func activate[T entity.CachedArtifact](ctx context.Context, repo repository.ArtifactRepository[T], art T, keep int) error {
	start := time.Now()
	if err := repo.Activate(ctx, art); err != nil {
		metrics.ArtifactRegenerationsTotal.WithLabelValues(string(art.Scope()), "failed").Inc()
		return fmt.Errorf("activate %s artifact: %w", art.Scope(), err)
	}
	metrics.ArtifactRegenerationsTotal.WithLabelValues(string(art.Scope()), "success").Inc()
	logger.Info(ctx, "artifact regenerated",
		"scope", art.Scope(),
		"scope_id", art.ScopeID(),
		"artifact_id", art.ArtifactID(),
		"note_count", art.GeneratedNoteCount(),
		"activate_ms", time.Since(start).Milliseconds(),
	)

	if keep > 0 {
		pruned, err := repo.PruneHistory(ctx, art.ScopeID(), keep)
		if err != nil {
			logger.Warn(ctx, "failed to prune artifact history", "scope", art.Scope(), "scope_id", art.ScopeID(), "error", err.Error())
		} else if pruned > 0 {
			logger.Debug(ctx, "artifact history pruned", "scope", art.Scope(), "rows", pruned)
		}
	}
	return nil
}
