package narration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
	apperrors "match-intel-api/pkg/errors"
)

type memNotes struct {
	repository.NoteRepository
	mu    sync.Mutex
	notes map[string]*entity.Note
}

func newMemNotes() *memNotes {
	return &memNotes{notes: map[string]*entity.Note{}}
}

func (m *memNotes) Create(_ context.Context, note *entity.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note.ID = uuid.NewString()
	note.CreatedAt = time.Now()
	cp := *note
	m.notes[note.ID] = &cp
	return nil
}

func (m *memNotes) GetByID(_ context.Context, id string) (*entity.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (m *memNotes) UpdateText(_ context.Context, id, raw string, cleaned *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notes[id]
	n.RawText = raw
	n.CleanedText = cleaned
	n.Embedding = nil
	return nil
}

func (m *memNotes) SetEmbedding(_ context.Context, id string, vec entity.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[id].Embedding = vec
	return nil
}

func (m *memNotes) ListMissingEmbedding(_ context.Context, limit int) ([]*entity.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Note
	for _, n := range m.notes {
		if !n.HasEmbedding() && len(out) < limit {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubAccess struct{}

func (stubAccess) CheckMatch(_ context.Context, actor entity.Actor, matchID string) (*entity.Match, error) {
	if matchID != "m-1" || actor.OrgID != "org-a" {
		return nil, apperrors.ErrMatchNotFound
	}
	return &entity.Match{ID: "m-1", OrgID: "org-a"}, nil
}

func (s stubAccess) CheckSegment(ctx context.Context, actor entity.Actor, segmentID string) (*entity.Match, *entity.Segment, error) {
	matchID := map[string]string{"s-1": "m-1", "s-other": "m-2"}[segmentID]
	if matchID == "" {
		return nil, nil, apperrors.ErrSegmentNotFound
	}
	if matchID == "m-2" {
		return &entity.Match{ID: "m-2", OrgID: "org-a"}, &entity.Segment{ID: segmentID, MatchID: "m-2"}, nil
	}
	m, err := s.CheckMatch(ctx, actor, matchID)
	if err != nil {
		return nil, nil, apperrors.ErrSegmentNotFound
	}
	return m, &entity.Segment{ID: segmentID, MatchID: matchID}, nil
}

type stubEmbedder struct {
	fail  map[string]bool
	calls int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (entity.Vector, error) {
	e.calls++
	if e.fail[text] {
		return nil, errors.New("provider down")
	}
	return entity.Vector{0.1, 0.2, float32(len(text))}, nil
}

type recordingPublisher struct {
	noteIDs []string
	err     error
}

func (p *recordingPublisher) PublishEmbedNote(_ context.Context, _, _, noteID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.noteIDs = append(p.noteIDs, noteID)
	return "1-0", nil
}

type recordingIndex struct {
	upserted []string
	deleted  []string
}

func (i *recordingIndex) UpsertNote(_ context.Context, note *entity.Note) error {
	i.upserted = append(i.upserted, note.ID)
	return nil
}

func (i *recordingIndex) DeleteNote(_ context.Context, noteID string) error {
	i.deleted = append(i.deleted, noteID)
	return nil
}

var coach = entity.Actor{UserID: "u-1", OrgID: "org-a", Role: entity.UserRoleCoach}

func TestCreateNotePublishesEmbedJob(t *testing.T) {
	notes := newMemNotes()
	pub := &recordingPublisher{}
	emb := &stubEmbedder{}
	svc := NewService(notes, stubAccess{}, emb, pub, nil)

	note, err := svc.CreateNote(context.Background(), coach, CreateNoteInput{
		MatchID:   "m-1",
		SegmentID: "s-1",
		Text:      "  Press   broke\nafter the sub ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Press   broke\nafter the sub", note.RawText)
	require.NotNil(t, note.CleanedText)
	assert.Equal(t, "Press broke after the sub", *note.CleanedText)
	assert.Equal(t, "u-1", note.AuthorID)
	assert.False(t, note.HasEmbedding())
	assert.Equal(t, []string{note.ID}, pub.noteIDs)
	assert.Zero(t, emb.calls)
}

func TestCreateNoteValidation(t *testing.T) {
	svc := NewService(newMemNotes(), stubAccess{}, &stubEmbedder{}, &recordingPublisher{}, nil)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, entity.Actor{OrgID: "org-a", Role: entity.UserRolePlayer}, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "   "})
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: strings.Repeat("a", defaultMaxRunes+1)})
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-other", Text: "x"})
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = svc.CreateNote(ctx, entity.Actor{OrgID: "org-b", Role: entity.UserRoleAdmin}, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)
}

func TestCreateNoteRequiresSegment(t *testing.T) {
	notes := newMemNotes()
	svc := NewService(notes, stubAccess{}, &stubEmbedder{}, &recordingPublisher{}, nil)
	ctx := context.Background()

	for _, seg := range []string{"", "   "} {
		note, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: seg, Text: "orphan note"})
		require.Error(t, err)
		assert.Nil(t, note)
		assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
	}

	_, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-missing", Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrSegmentNotFound)

	left, _ := notes.ListMissingEmbedding(ctx, 10)
	assert.Empty(t, left)
}

func TestCreateNoteWithoutPublisherEmbedsInline(t *testing.T) {
	notes := newMemNotes()
	idx := &recordingIndex{}
	svc := NewService(notes, stubAccess{}, &stubEmbedder{}, nil, idx)

	note, err := svc.CreateNote(context.Background(), coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "Clean sheet"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", note.SegmentID)

	stored, _ := notes.GetByID(context.Background(), note.ID)
	assert.True(t, stored.HasEmbedding())
	assert.Equal(t, []string{note.ID}, idx.upserted)
}

func TestCreateNoteSurvivesPublishFailure(t *testing.T) {
	svc := NewService(newMemNotes(), stubAccess{}, &stubEmbedder{}, &recordingPublisher{err: errors.New("redis down")}, nil)

	note, err := svc.CreateNote(context.Background(), coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "Late goal"})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
}

func TestUpdateTextClearsEmbedding(t *testing.T) {
	notes := newMemNotes()
	pub := &recordingPublisher{}
	idx := &recordingIndex{}
	svc := NewService(notes, stubAccess{}, &stubEmbedder{}, pub, idx)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "first"})
	require.NoError(t, err)
	require.NoError(t, svc.EmbedNote(ctx, note.ID))
	stored, _ := notes.GetByID(ctx, note.ID)
	require.True(t, stored.HasEmbedding())

	updated, err := svc.UpdateText(ctx, coach, note.ID, "second take")
	require.NoError(t, err)
	assert.Equal(t, "second take", updated.RawText)

	stored, _ = notes.GetByID(ctx, note.ID)
	assert.False(t, stored.HasEmbedding())
	assert.Equal(t, []string{note.ID}, idx.deleted)
	assert.Equal(t, []string{note.ID, note.ID}, pub.noteIDs)
}

func TestUpdateTextTenancy(t *testing.T) {
	notes := newMemNotes()
	svc := NewService(notes, stubAccess{}, &stubEmbedder{}, &recordingPublisher{}, nil)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "first"})
	require.NoError(t, err)

	_, err = svc.UpdateText(ctx, entity.Actor{OrgID: "org-b", Role: entity.UserRoleCoach}, note.ID, "hijack")
	assert.ErrorIs(t, err, apperrors.ErrNoteNotFound)

	_, err = svc.UpdateText(ctx, coach, "missing", "text")
	assert.ErrorIs(t, err, apperrors.ErrNoteNotFound)
}

func TestEmbedNote(t *testing.T) {
	notes := newMemNotes()
	emb := &stubEmbedder{}
	svc := NewService(notes, stubAccess{}, emb, &recordingPublisher{}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.EmbedNote(ctx, "missing"), ErrNoteGone)

	note, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: "Shape held"})
	require.NoError(t, err)
	require.NoError(t, svc.EmbedNote(ctx, note.ID))
	require.NoError(t, svc.EmbedNote(ctx, note.ID))
	assert.Equal(t, 1, emb.calls)
}

func TestBackfillContinuesPastFailures(t *testing.T) {
	notes := newMemNotes()
	emb := &stubEmbedder{fail: map[string]bool{"bad": true}}
	svc := NewService(notes, stubAccess{}, emb, &recordingPublisher{}, nil)
	ctx := context.Background()

	for _, text := range []string{"one", "bad", "three"} {
		_, err := svc.CreateNote(ctx, coach, CreateNoteInput{MatchID: "m-1", SegmentID: "s-1", Text: text})
		require.NoError(t, err)
	}

	res, err := svc.Backfill(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Embedded)
	assert.Equal(t, 1, res.Failed)

	left, _ := notes.ListMissingEmbedding(ctx, 10)
	require.Len(t, left, 1)
	assert.Equal(t, "bad", left[0].RawText)
}
