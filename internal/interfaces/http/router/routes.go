package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	matches := v1.Group("/matches")
	{
		matches.POST("/:mid/questions", h.Question.Ask)
		matches.GET("/:mid/intelligence", h.Insight.GetMatchIntelligence)
		matches.POST("/:mid/notes", h.Note.CreateNote)
	}

	v1.GET("/segments/:sid/insight", h.Insight.GetSegmentInsight)
	v1.PATCH("/notes/:nid", h.Note.UpdateNote)
	v1.POST("/regenerations", h.Insight.Regenerate)

	admin := v1.Group("/admin")
	{
		admin.POST("/reconcile", h.Insight.Reconcile)
	}
}
