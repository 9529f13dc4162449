package dto

import "match-intel-api/internal/domain/entity"

// AskQuestionRequest 问答请求，k 省略时使用服务端默认值
type AskQuestionRequest struct {
	Query     string `json:"query" binding:"required,max=2000"`
	KNotes    int    `json:"k_notes" binding:"omitempty,min=1"`
	KInsights int    `json:"k_insights" binding:"omitempty,min=1"`
}

// AnswerResponse 问答响应
type AnswerResponse struct {
	Answer              string                      `json:"answer"`
	KeyPoints           []entity.KeyPoint           `json:"key_points"`
	RecommendedSegments []entity.RecommendedSegment `json:"recommended_segments"`
	Confidence          entity.Confidence           `json:"confidence"`
	Evidence            []entity.EvidenceItem       `json:"evidence"`
	Outcome             entity.AnswerOutcome        `json:"outcome"`
	Degraded            bool                        `json:"degraded"`
}

// ToAnswerResponse 空切片输出为 []，避免客户端区分 null
func ToAnswerResponse(a *entity.Answer) *AnswerResponse {
	if a == nil {
		return nil
	}
	resp := &AnswerResponse{
		Answer:              a.Answer,
		KeyPoints:           a.KeyPoints,
		RecommendedSegments: a.RecommendedSegments,
		Confidence:          a.Confidence,
		Evidence:            a.Evidence,
		Outcome:             a.Outcome,
		Degraded:            a.Degraded,
	}
	if resp.KeyPoints == nil {
		resp.KeyPoints = []entity.KeyPoint{}
	}
	if resp.RecommendedSegments == nil {
		resp.RecommendedSegments = []entity.RecommendedSegment{}
	}
	if resp.Evidence == nil {
		resp.Evidence = []entity.EvidenceItem{}
	}
	return resp
}
