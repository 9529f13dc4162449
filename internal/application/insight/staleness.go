// Package insight 维护片段洞察与比赛情报两类缓存产物：状态判定、重新生成与修复
package insight

import (
	"math"

	"match-intel-api/internal/domain/entity"
)

// Policy 漂移阈值与比赛分档
type Policy struct {
	SegmentDriftRatio float64
	SegmentDriftFloor int
	MatchDriftRatio   float64
	MatchDriftFloor   int
	// MatchMinNotes 比赛情报的最少笔记数，低于此值不生成（即使强制刷新）
	MatchMinNotes int
	// ComprehensiveAt 达到此笔记数时生成扩展版情报
	ComprehensiveAt int
}

var DefaultPolicy = Policy{
	SegmentDriftRatio: 0.4,
	SegmentDriftFloor: 1,
	MatchDriftRatio:   0.2,
	MatchDriftFloor:   5,
	MatchMinNotes:     25,
	ComprehensiveAt:   100,
}

// Threshold segment: max(1, ceil(n*0.4))；match: max(5, ceil(n*0.2))
func (p Policy) Threshold(scope entity.ScopeType, generatedCount int) int {
	ratio, floor := p.SegmentDriftRatio, p.SegmentDriftFloor
	if scope == entity.ScopeMatch {
		ratio, floor = p.MatchDriftRatio, p.MatchDriftFloor
	}
	// 减去 epsilon 抵消 n*ratio 的浮点误差
	t := int(math.Ceil(float64(generatedCount)*ratio - 1e-9))
	if t < floor {
		return floor
	}
	return t
}

// Drift |current - generated|
func Drift(current, generated int) int {
	if current > generated {
		return current - generated
	}
	return generated - current
}

// IsStale drift 达到阈值即过期
func (p Policy) IsStale(scope entity.ScopeType, current, generated int) bool {
	return Drift(current, generated) >= p.Threshold(scope, generated)
}

// Tier 按笔记数划分比赛情报档位
func (p Policy) Tier(count int) entity.MatchTier {
	switch {
	case count < p.MatchMinNotes:
		return entity.MatchTierInsufficient
	case p.ComprehensiveAt > 0 && count >= p.ComprehensiveAt:
		return entity.MatchTierComprehensive
	default:
		return entity.MatchTierStandard
	}
}

// Evaluate 根据当前笔记数与激活产物给出状态。
// 有激活产物时总是返回 fresh/stale，保证调用方拿到最后一次成功生成的结果。
func (p Policy) Evaluate(scope entity.ScopeType, current int, active entity.CachedArtifact) entity.ArtifactState {
	if active != nil {
		if p.IsStale(scope, current, active.GeneratedNoteCount()) {
			return entity.ArtifactStale
		}
		return entity.ArtifactFresh
	}
	if current <= 0 {
		return entity.ArtifactAbsent
	}
	if scope == entity.ScopeMatch && current < p.MatchMinNotes {
		return entity.ArtifactInsufficient
	}
	return entity.ArtifactEligible
}
