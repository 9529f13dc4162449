package entity

import (
	"strings"
	"time"
)

// Note 一条人工撰写的解说笔记
type Note struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MatchID     string    `json:"match_id" gorm:"type:uuid;index;not null"`
	SegmentID   string    `json:"segment_id" gorm:"type:uuid;index;not null"`
	AuthorID    string    `json:"author_id" gorm:"type:varchar(64)"`
	RawText     string    `json:"raw_text" gorm:"type:text;not null"`
	CleanedText *string   `json:"cleaned_text,omitempty" gorm:"type:text"`
	Embedding   Vector    `json:"-" gorm:"type:vector"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Note) TableName() string {
	return "notes"
}

// Text 优先返回清洗后的文本
func (n *Note) Text() string {
	if n == nil {
		return ""
	}
	if n.CleanedText != nil && strings.TrimSpace(*n.CleanedText) != "" {
		return *n.CleanedText
	}
	return n.RawText
}

// HasEmbedding 是否已回填向量
func (n *Note) HasEmbedding() bool {
	return n != nil && len(n.Embedding) > 0
}
