// Package narration 解说笔记的写入与向量回填
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	apperrors "match-intel-api/pkg/errors"
	"match-intel-api/pkg/logger"
)

const defaultMaxRunes = 4000

// ErrNoteGone 向量化任务执行时笔记已被删除，任务可直接确认
var ErrNoteGone = errors.New("note no longer exists")

// CreateNoteInput 新建笔记
type CreateNoteInput struct {
	MatchID   string
	SegmentID string
	Text      string
}

// BackfillResult 向量回填统计
type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Service 笔记服务
type Service struct {
	notes     repository.NoteRepository
	access    AccessChecker
	embedder  Embedder
	publisher EmbedPublisher
	index     repository.NoteVectorIndex
	maxRunes  int
}

// NewService publisher 为 nil 时写入后同步向量化；index 仅在 milvus 后端时非 nil
func NewService(notes repository.NoteRepository, access AccessChecker, embedder Embedder, publisher EmbedPublisher, index repository.NoteVectorIndex) *Service {
	return &Service{
		notes:     notes,
		access:    access,
		embedder:  embedder,
		publisher: publisher,
		index:     index,
		maxRunes:  defaultMaxRunes,
	}
}

// CreateNote 写入笔记，向量为空，随后异步回填
func (s *Service) CreateNote(ctx context.Context, actor entity.Actor, in CreateNoteInput) (*entity.Note, error) {
	if !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	raw, cleaned, err := s.normalize(in.Text)
	if err != nil {
		return nil, err
	}

	// 笔记必须挂在本场比赛的某个片段下
	if strings.TrimSpace(in.SegmentID) == "" {
		return nil, apperrors.ErrInvalidParam.Clone().WithDetail("segment_id is required")
	}
	_, seg, err := s.access.CheckSegment(ctx, actor, in.SegmentID)
	if err != nil {
		return nil, err
	}
	if seg.MatchID != in.MatchID {
		return nil, apperrors.ErrInvalidParam.Clone().WithDetail("segment does not belong to match")
	}

	note := &entity.Note{
		MatchID:     in.MatchID,
		SegmentID:   in.SegmentID,
		AuthorID:    actor.UserID,
		RawText:     raw,
		CleanedText: cleaned,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	ctx = logger.WithContext(ctx, logger.MatchIDKey, note.MatchID)
	logger.Info(ctx, "note created", "note_id", note.ID, "segment_id", note.SegmentID)
	s.scheduleEmbed(ctx, actor.OrgID, note)
	return note, nil
}

// UpdateText 修改笔记文本，清空旧向量并重新排队
func (s *Service) UpdateText(ctx context.Context, actor entity.Actor, noteID, text string) (*entity.Note, error) {
	if !actor.CanAnnotate() {
		return nil, apperrors.ErrForbidden
	}
	raw, cleaned, err := s.normalize(text)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if note == nil {
		return nil, apperrors.ErrNoteNotFound
	}
	if _, err := s.access.CheckMatch(ctx, actor, note.MatchID); err != nil {
		if errors.Is(err, apperrors.ErrMatchNotFound) {
			return nil, apperrors.ErrNoteNotFound
		}
		return nil, err
	}

	if err := s.notes.UpdateText(ctx, noteID, raw, cleaned); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	note.RawText = raw
	note.CleanedText = cleaned
	note.Embedding = nil

	ctx = logger.WithContext(ctx, logger.MatchIDKey, note.MatchID)
	if s.index != nil {
		if err := s.index.DeleteNote(ctx, noteID); err != nil {
			logger.Warn(ctx, "failed to drop note from vector index", "note_id", noteID, "error", err)
		}
	}
	s.scheduleEmbed(ctx, actor.OrgID, note)
	return note, nil
}

// EmbedNote 为单条笔记回填向量；已有向量时跳过
func (s *Service) EmbedNote(ctx context.Context, noteID string) error {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return fmt.Errorf("get note: %w", err)
	}
	if note == nil {
		return ErrNoteGone
	}
	if note.HasEmbedding() {
		return nil
	}
	return s.embed(ctx, note)
}

// Backfill 扫描缺失向量的笔记并逐条回填，单条失败不中断
func (s *Service) Backfill(ctx context.Context, limit int) (*BackfillResult, error) {
	if limit <= 0 {
		limit = 500
	}
	pending, err := s.notes.ListMissingEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list notes missing embedding: %w", err)
	}

	res := &BackfillResult{Scanned: len(pending)}
	for _, note := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.embed(ctx, note); err != nil {
			res.Failed++
			logger.Warn(ctx, "backfill embedding failed", "note_id", note.ID, "error", err)
			continue
		}
		res.Embedded++
	}
	logger.Info(ctx, "embedding backfill finished",
		"scanned", res.Scanned, "embedded", res.Embedded, "failed", res.Failed)
	return res, nil
}

func (s *Service) embed(ctx context.Context, note *entity.Note) error {
	vec, err := s.embedder.Embed(ctx, note.Text())
	if err != nil {
		return fmt.Errorf("embed note %s: %w", note.ID, err)
	}

	if err := s.notes.SetEmbedding(ctx, note.ID, vec); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	note.Embedding = vec
	if s.index != nil {
		if err := s.index.UpsertNote(ctx, note); err != nil {
			return fmt.Errorf("index note: %w", err)
		}
	}
	return nil
}

// scheduleEmbed 投递向量化任务；投递失败只告警，由 backfill 兜底
func (s *Service) scheduleEmbed(ctx context.Context, orgID string, note *entity.Note) {
	if s.publisher == nil {
		if err := s.embed(ctx, note); err != nil {
			logger.Warn(ctx, "inline embedding failed", "note_id", note.ID, "error", err)
		}
		return
	}
	if _, err := s.publisher.PublishEmbedNote(ctx, orgID, note.MatchID, note.ID); err != nil {
		logger.Warn(ctx, "failed to publish embed job", "note_id", note.ID, "error", err)
	}
}

// normalize 返回原文与折叠空白后的文本（与原文相同时为 nil）
func (s *Service) normalize(text string) (string, *string, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return "", nil, apperrors.ErrInvalidParam.Clone().WithDetail("text is required")
	}
	if utf8.RuneCountInString(raw) > s.maxRunes {
		return "", nil, apperrors.ErrInvalidParam.Clone().WithDetail(fmt.Sprintf("text exceeds %d characters", s.maxRunes))
	}
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == raw {
		return raw, nil, nil
	}
	return raw, &cleaned, nil
}
