package handler

import (
	"github.com/gin-gonic/gin"

	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/interfaces/http/dto"
	"match-intel-api/internal/interfaces/http/middleware"
)

// NoteHandler 解说笔记写入
type NoteHandler struct {
	svc NoteService
}

func NewNoteHandler(svc NoteService) *NoteHandler {
	return &NoteHandler{svc: svc}
}

// CreateNote 新建笔记
// @Summary 新建笔记
// @Tags Notes
// @Accept json
// @Produce json
// @Param mid path string true "比赛 ID"
// @Param body body dto.CreateNoteRequest true "笔记"
// @Success 201 {object} dto.Response[dto.NoteResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/matches/{mid}/notes [post]
func (h *NoteHandler) CreateNote(c *gin.Context) {
	matchID, ok := dto.BindUUIDParam(c, "mid")
	if !ok {
		return
	}

	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	note, err := h.svc.CreateNote(c.Request.Context(), middleware.ActorFromGin(c), narration.CreateNoteInput{
		MatchID:   matchID,
		SegmentID: req.SegmentID,
		Text:      req.Text,
	})
	if err != nil {
		respondError(c, err, "create note")
		return
	}
	dto.Created(c, dto.ToNoteResponse(note))
}

// UpdateNote 修改笔记正文，向量随后重新回填
// @Summary 修改笔记
// @Tags Notes
// @Accept json
// @Produce json
// @Param nid path string true "笔记 ID"
// @Param body body dto.UpdateNoteRequest true "正文"
// @Success 200 {object} dto.Response[dto.NoteResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/notes/{nid} [patch]
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	noteID, ok := dto.BindUUIDParam(c, "nid")
	if !ok {
		return
	}

	var req dto.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	note, err := h.svc.UpdateText(c.Request.Context(), middleware.ActorFromGin(c), noteID, req.Text)
	if err != nil {
		respondError(c, err, "update note")
		return
	}
	dto.Success(c, dto.ToNoteResponse(note))
}
