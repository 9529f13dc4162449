package handler

import (
	"github.com/gin-gonic/gin"

	"match-intel-api/internal/application/retrieval"
	"match-intel-api/internal/interfaces/http/dto"
	"match-intel-api/internal/interfaces/http/middleware"
)

// QuestionHandler 比赛问答
type QuestionHandler struct {
	answerer QuestionAnswerer
}

func NewQuestionHandler(answerer QuestionAnswerer) *QuestionHandler {
	return &QuestionHandler{answerer: answerer}
}

// Ask 回答关于比赛的问题
// @Summary 比赛问答
// @Description 基于解说笔记与缓存洞察回答问题；证据不足时返回固定回复而非错误
// @Tags Questions
// @Accept json
// @Produce json
// @Param mid path string true "比赛 ID"
// @Param body body dto.AskQuestionRequest true "问题"
// @Success 200 {object} dto.Response[dto.AnswerResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/matches/{mid}/questions [post]
func (h *QuestionHandler) Ask(c *gin.Context) {
	matchID, ok := dto.BindUUIDParam(c, "mid")
	if !ok {
		return
	}

	var req dto.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	answer, err := h.answerer.Answer(c.Request.Context(), middleware.ActorFromGin(c), retrieval.QuestionInput{
		MatchID:   matchID,
		Query:     req.Query,
		KNotes:    req.KNotes,
		KInsights: req.KInsights,
	})
	if err != nil {
		respondError(c, err, "answer question")
		return
	}
	dto.Success(c, dto.ToAnswerResponse(answer))
}
