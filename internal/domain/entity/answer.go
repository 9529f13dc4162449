package entity

// Confidence 回答置信度档位
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Lower 降一档，low 保持不变
func (c Confidence) Lower() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AnswerOutcome 问答结果类别，用于日志与指标区分
type AnswerOutcome string

const (
	OutcomeAnswered             AnswerOutcome = "answered"
	OutcomeInsufficientEvidence AnswerOutcome = "insufficient_evidence"
	OutcomeGenerationFailure    AnswerOutcome = "generation_failure"
)

// KeyPoint 回答要点
type KeyPoint struct {
	Text        string   `json:"text"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// RecommendedSegment 推荐回看的片段
type RecommendedSegment struct {
	SegmentID   string   `json:"segment_id"`
	Reason      string   `json:"reason"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// EvidenceItem 回答附带的证据
type EvidenceItem struct {
	EvidenceID string     `json:"evidence_id"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	SegmentID  string     `json:"segment_id,omitempty"`
	Score      float64    `json:"score"`
	Signal     Signal     `json:"signal"`
	Text       string     `json:"text"`
}

// Answer answer_question 的返回
type Answer struct {
	Answer              string               `json:"answer"`
	KeyPoints           []KeyPoint           `json:"key_points"`
	RecommendedSegments []RecommendedSegment `json:"recommended_segments"`
	Confidence          Confidence           `json:"confidence"`
	Evidence            []EvidenceItem       `json:"evidence"`
	Outcome             AnswerOutcome        `json:"outcome"`
	Degraded            bool                 `json:"degraded"`
}
