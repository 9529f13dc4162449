package model

// SegmentInsightInput 片段洞察生成输入
type SegmentInsightInput struct {
	LLMOptions
	MatchTitle   string
	SegmentLabel string
	Notes        []NoteLine
}

// SegmentInsightOutput 片段洞察
type SegmentInsightOutput struct {
	Headline  string `json:"headline"`
	Sentence  string `json:"sentence"`
	Narrative string `json:"narrative"`
}

// MatchIntelligenceInput 比赛情报生成输入
type MatchIntelligenceInput struct {
	LLMOptions
	MatchTitle string
	Tier       string
	// Sections 需要输出的段落名称
	Sections []string
	Notes    []NoteLine
}

// MatchIntelligenceOutput 比赛情报
type MatchIntelligenceOutput struct {
	Headline string                `json:"headline"`
	Summary  string                `json:"summary"`
	Sections []IntelligenceSection `json:"sections"`
}

type IntelligenceSection struct {
	Name string `json:"name"`
	Body string `json:"body"`
}
