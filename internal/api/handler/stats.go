package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz reports process liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns aggregate counters: active conversations, free operators and
// the feedback mood distribution. All counts are derived queries; nothing is
// cached between requests.
func (h *Handler) Stats(c *gin.Context) {
	active, err := h.Storage.CountActiveConversations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count conversations"})
		return
	}
	free, err := h.Storage.CountFreeOperators()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count operators"})
		return
	}
	moods, err := h.Storage.FeedbackSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to summarize feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_conversations": active,
		"free_operators":       free,
		"feedback_moods":       moods,
	})
}
