package model

// AnswerInput 问答生成输入
type AnswerInput struct {
	LLMOptions
	MatchTitle string
	Question   string
	// Evidence 已格式化的证据块，每行以 [evidence_id] 开头
	Evidence string
}

// AnswerOutput 模型返回的固定 JSON 结构
type AnswerOutput struct {
	Answer              string                 `json:"answer"`
	KeyPoints           []AnswerKeyPoint       `json:"key_points"`
	RecommendedSegments []AnswerSegmentPointer `json:"recommended_segments"`
}

type AnswerKeyPoint struct {
	Text        string   `json:"text"`
	EvidenceIDs []string `json:"evidence_ids"`
}

type AnswerSegmentPointer struct {
	SegmentID   string   `json:"segment_id"`
	Reason      string   `json:"reason"`
	EvidenceIDs []string `json:"evidence_ids"`
}
