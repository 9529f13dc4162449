package retrieval

import "match-intel-api/internal/domain/entity"

// GatePolicy 证据门控阈值
type GatePolicy struct {
	MinEvidence  int
	HighEvidence int
	HighScore    float64
}

// DefaultGatePolicy 少于 5 条拒答；>=12 条且最高分 >=0.45 为 high
var DefaultGatePolicy = GatePolicy{MinEvidence: 5, HighEvidence: 12, HighScore: 0.45}

// GateDecision 门控结果
type GateDecision struct {
	Proceed    bool
	Confidence entity.Confidence
}

// Decide 根据证据数量与最高语义分给出是否生成及置信度；
// embedding 不可用时（degraded）置信度再降一档
func (p GatePolicy) Decide(count int, best float64, degraded bool) GateDecision {
	if count < p.MinEvidence {
		return GateDecision{Proceed: false, Confidence: entity.ConfidenceLow}
	}
	conf := entity.ConfidenceMedium
	if count >= p.HighEvidence && best >= p.HighScore {
		conf = entity.ConfidenceHigh
	}
	if degraded {
		conf = conf.Lower()
	}
	return GateDecision{Proceed: true, Confidence: conf}
}
