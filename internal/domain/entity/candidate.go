package entity

import "time"

// SourceType 检索语料来源
type SourceType string

const (
	SourceNote              SourceType = "note"
	SourceSegmentInsight    SourceType = "segment_insight"
	SourceMatchIntelligence SourceType = "match_intelligence"
)

// Signal 检索信号
type Signal string

const (
	SignalSemantic Signal = "semantic"
	SignalLexical  Signal = "lexical"
)

// Candidate 单个检索器返回的一条候选
type Candidate struct {
	ID        string
	Source    SourceType
	Signal    Signal
	Score     float64
	SegmentID string
	Text      string
	// CreatedAt 笔记创建时间或产物生成时间，用于同分排序
	CreatedAt time.Time
}
