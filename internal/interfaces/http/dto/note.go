package dto

import (
	"time"

	"match-intel-api/internal/domain/entity"
)

// CreateNoteRequest 新建笔记
type CreateNoteRequest struct {
	SegmentID string `json:"segment_id" binding:"required,uuid"`
	Text      string `json:"text" binding:"required"`
}

// UpdateNoteRequest 修改笔记正文
type UpdateNoteRequest struct {
	Text string `json:"text" binding:"required"`
}

// NoteResponse 笔记
type NoteResponse struct {
	ID          string    `json:"id"`
	MatchID     string    `json:"match_id"`
	SegmentID   string    `json:"segment_id"`
	AuthorID    string    `json:"author_id,omitempty"`
	RawText     string    `json:"raw_text"`
	CleanedText *string   `json:"cleaned_text,omitempty"`
	Embedded    bool      `json:"embedded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToNoteResponse(n *entity.Note) *NoteResponse {
	return &NoteResponse{
		ID:          n.ID,
		MatchID:     n.MatchID,
		SegmentID:   n.SegmentID,
		AuthorID:    n.AuthorID,
		RawText:     n.RawText,
		CleanedText: n.CleanedText,
		Embedded:    n.HasEmbedding(),
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}
