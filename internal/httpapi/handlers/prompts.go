package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
)

type promptReq struct {
	Name string `json:"name" binding:"required"`
	Text string `json:"text" binding:"required"`
}

func (h *Handler) CreatePrompt(c *gin.Context) {
	var req promptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p := &hub.Prompt{Name: req.Name, Text: req.Text}
	if err := h.Hub.CreatePrompt(c.Request.Context(), p); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Prompt created successfully",
		"prompt_id": p.ID,
		"data":      p,
	})
}

func (h *Handler) ListPrompts(c *gin.Context) {
	prompts, err := h.Hub.ListPrompts(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list prompts")
		return
	}
	c.JSON(http.StatusOK, prompts)
}

func (h *Handler) DeletePrompt(c *gin.Context) {
	id := c.Param("id")
	if err := h.Hub.DeletePrompt(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, "Prompt not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Prompt deleted successfully",
		"prompt_id": id,
	})
}
