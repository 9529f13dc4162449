package dto

import (
	"time"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/domain/entity"
)

// SegmentInsightResponse 片段洞察；无激活产物时只有 state 与 note_count
type SegmentInsightResponse struct {
	State                 entity.ArtifactState `json:"state"`
	SegmentID             string               `json:"segment_id"`
	NoteCount             int                  `json:"note_count"`
	Headline              *string              `json:"headline,omitempty"`
	Sentence              *string              `json:"sentence,omitempty"`
	Narrative             *string              `json:"narrative,omitempty"`
	NoteCountAtGeneration *int                 `json:"note_count_at_generation,omitempty"`
	GeneratedAt           *time.Time           `json:"generated_at,omitempty"`
	IsStale               *bool                `json:"is_stale,omitempty"`
}

// ToSegmentInsightResponse 转换片段洞察视图
func ToSegmentInsightResponse(v *insight.SegmentInsightView) *SegmentInsightResponse {
	resp := &SegmentInsightResponse{
		State:     v.State,
		SegmentID: v.SegmentID,
		NoteCount: v.NoteCount,
	}
	if si := v.Insight; si != nil {
		stale := v.IsStale
		count := si.NoteCountAtGeneration
		generated := si.GeneratedAt
		resp.Headline = &si.Headline
		resp.Sentence = &si.Sentence
		resp.Narrative = si.Narrative
		resp.NoteCountAtGeneration = &count
		resp.GeneratedAt = &generated
		resp.IsStale = &stale
	}
	return resp
}

// MatchIntelligenceResponse 比赛情报
type MatchIntelligenceResponse struct {
	State                 entity.ArtifactState  `json:"state"`
	MatchID               string                `json:"match_id"`
	NoteCount             int                   `json:"note_count"`
	Tier                  entity.MatchTier      `json:"tier"`
	Headline              *string               `json:"headline,omitempty"`
	Summary               *string               `json:"summary,omitempty"`
	Sections              []entity.IntelSection `json:"sections,omitempty"`
	GeneratedTier         entity.MatchTier      `json:"generated_tier,omitempty"`
	NoteCountAtGeneration *int                  `json:"note_count_at_generation,omitempty"`
	GeneratedAt           *time.Time            `json:"generated_at,omitempty"`
	IsStale               *bool                 `json:"is_stale,omitempty"`
}

// ToMatchIntelligenceResponse sections 列损坏时返回错误
func ToMatchIntelligenceResponse(v *insight.MatchIntelligenceView) (*MatchIntelligenceResponse, error) {
	resp := &MatchIntelligenceResponse{
		State:     v.State,
		MatchID:   v.MatchID,
		NoteCount: v.NoteCount,
		Tier:      v.Tier,
	}
	mi := v.Intelligence
	if mi == nil {
		return resp, nil
	}
	sections, err := mi.DecodeSections()
	if err != nil {
		return nil, err
	}
	stale := v.IsStale
	count := mi.NoteCountAtGeneration
	generated := mi.GeneratedAt
	resp.Headline = &mi.Headline
	resp.Summary = &mi.Summary
	resp.Sections = sections
	resp.GeneratedTier = mi.Tier
	resp.NoteCountAtGeneration = &count
	resp.GeneratedAt = &generated
	resp.IsStale = &stale
	return resp, nil
}

// ScopeRequest 重新生成与修复共用的作用域参数
type ScopeRequest struct {
	ScopeType string `json:"scope_type" binding:"required,oneof=segment match"`
	ScopeID   string `json:"scope_id" binding:"required"`
}

// RegenerationResponse 重新生成结果
type RegenerationResponse struct {
	ScopeType   entity.ScopeType `json:"scope_type"`
	ScopeID     string           `json:"scope_id"`
	Regenerated bool             `json:"regenerated"`
	ArtifactID  string           `json:"artifact_id,omitempty"`
	NoteCount   int              `json:"note_count"`
}

// ToRegenerationResponse 转换重新生成结果
func ToRegenerationResponse(r *insight.RegenerationResult) *RegenerationResponse {
	return &RegenerationResponse{
		ScopeType:   r.Scope,
		ScopeID:     r.ScopeID,
		Regenerated: r.Regenerated,
		ArtifactID:  r.ArtifactID,
		NoteCount:   r.NoteCount,
	}
}

// ReconcileResponse 修复结果
type ReconcileResponse struct {
	ScopeType entity.ScopeType `json:"scope_type"`
	ScopeID   string           `json:"scope_id"`
	ActiveID  string           `json:"active_id,omitempty"`
}
