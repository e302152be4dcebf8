package routes

import (
	"net/http"

	"finrag-backend/internal/logger"
	"finrag-backend/models"
	"finrag-backend/services"
	"finrag-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes registers the question-answering endpoint
func SetupChatRoutes(router *gin.Engine, answers *services.AnswerService) {
	router.POST("/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := answers.HandleQuestion(c.Request.Context(), req.Question)
		if err != nil {
			logger.Error("Failed to answer question", "error", err)
			utils.RespondWithInternalError(c, "Failed to generate an answer", nil)
			return
		}

		c.JSON(http.StatusOK, resp)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
