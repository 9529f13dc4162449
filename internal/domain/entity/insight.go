package entity

import (
	"encoding/json"
	"time"
)

// SegmentInsight 片段笔记的缓存摘要，同一片段至多一行 active
type SegmentInsight struct {
	ID                    string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SegmentID             string    `json:"segment_id" gorm:"type:uuid;index;not null"`
	MatchID               string    `json:"match_id" gorm:"type:uuid;index;not null"`
	Headline              string    `json:"headline" gorm:"type:text;not null"`
	Sentence              string    `json:"sentence" gorm:"type:text;not null"`
	Narrative             *string   `json:"narrative,omitempty" gorm:"type:text"`
	NoteCountAtGeneration int       `json:"note_count_at_generation" gorm:"not null"`
	Active                bool      `json:"active" gorm:"not null;default:false"`
	Embedding             Vector    `json:"-" gorm:"type:vector"`
	GeneratedAt           time.Time `json:"generated_at" gorm:"not null"`
}

func (SegmentInsight) TableName() string {
	return "segment_insights"
}

func (s *SegmentInsight) ArtifactID() string       { return s.ID }
func (s *SegmentInsight) Scope() ScopeType         { return ScopeSegment }
func (s *SegmentInsight) ScopeID() string          { return s.SegmentID }
func (s *SegmentInsight) GeneratedNoteCount() int  { return s.NoteCountAtGeneration }
func (s *SegmentInsight) GeneratedTime() time.Time { return s.GeneratedAt }

// SummaryText 用于生成向量和证据展示
func (s *SegmentInsight) SummaryText() string {
	text := s.Headline + ". " + s.Sentence
	if s.Narrative != nil && *s.Narrative != "" {
		text += " " + *s.Narrative
	}
	return text
}

// IntelSection 比赛情报中的命名段落
type IntelSection struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// MatchIntelligence 整场比赛的缓存情报
type MatchIntelligence struct {
	ID                    string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MatchID               string          `json:"match_id" gorm:"type:uuid;index;not null"`
	Tier                  MatchTier       `json:"tier" gorm:"type:varchar(32);not null"`
	Headline              string          `json:"headline" gorm:"type:text;not null"`
	Summary               string          `json:"summary" gorm:"type:text;not null"`
	Sections              json.RawMessage `json:"sections" gorm:"type:jsonb;not null"`
	NoteCountAtGeneration int             `json:"note_count_at_generation" gorm:"not null"`
	Active                bool            `json:"active" gorm:"not null;default:false"`
	Embedding             Vector          `json:"-" gorm:"type:vector"`
	GeneratedAt           time.Time       `json:"generated_at" gorm:"not null"`
}

func (MatchIntelligence) TableName() string {
	return "match_intelligence"
}

func (m *MatchIntelligence) ArtifactID() string       { return m.ID }
func (m *MatchIntelligence) Scope() ScopeType         { return ScopeMatch }
func (m *MatchIntelligence) ScopeID() string          { return m.MatchID }
func (m *MatchIntelligence) GeneratedNoteCount() int  { return m.NoteCountAtGeneration }
func (m *MatchIntelligence) GeneratedTime() time.Time { return m.GeneratedAt }

// DecodeSections 解析 sections 列
func (m *MatchIntelligence) DecodeSections() ([]IntelSection, error) {
	if len(m.Sections) == 0 {
		return nil, nil
	}
	var out []IntelSection
	if err := json.Unmarshal(m.Sections, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSections 编码 sections 列
func (m *MatchIntelligence) SetSections(sections []IntelSection) error {
	if sections == nil {
		sections = []IntelSection{}
	}
	b, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	m.Sections = b
	return nil
}

// SummaryText 用于生成向量和证据展示
func (m *MatchIntelligence) SummaryText() string {
	return m.Headline + ". " + m.Summary
}
