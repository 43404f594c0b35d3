package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/ai"
	"github.com/suPer8Hu/guruji-chat/internal/assistant"
	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/history"
	"github.com/suPer8Hu/guruji-chat/internal/httpapi/middleware"
)

func (h *Handler) NewSession(c *gin.Context) {
	id, createdAt, err := h.Assistant.NewSession(c.Request.Context())
	if err != nil {
		h.Log.Error("chat", "failed to create session", map[string]any{"error": err})
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"created_at": createdAt,
	})
}

type chatReq struct {
	SessionID   string   `json:"session_id" binding:"required"`
	Message     string   `json:"message" binding:"required"`
	Provider    string   `json:"provider" binding:"required"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature" binding:"gte=0,lte=2"`
	Timeout     int      `json:"timeout" binding:"gte=0"`
	MaxTokens   int      `json:"max_tokens" binding:"gte=0"`
	MaxRetries  int      `json:"max_retries" binding:"gte=0,lte=10"`
	SelectedKBs []string `json:"selected_kbs"`
	SelectedDBs []string `json:"selected_dbs"`
	Agent       string   `json:"agent"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	reply, err := h.Assistant.Reply(c.Request.Context(), assistant.Request{
		SessionID:   req.SessionID,
		Message:     req.Message,
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		Timeout:     time.Duration(req.Timeout) * time.Second,
		MaxTokens:   req.MaxTokens,
		MaxRetries:  req.MaxRetries,
		SelectedKBs: req.SelectedKBs,
		Agent:       req.Agent,
		APIKey:      middleware.BearerToken(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
		case errors.Is(err, ai.ErrUnknownProvider):
			common.Fail(c, http.StatusBadRequest, 10003, err.Error())
		default:
			h.Log.Error("chat", "failed to get reply", map[string]any{
				"session_id": req.SessionID,
				"provider":   req.Provider,
				"error":      err,
			})
			common.Fail(c, http.StatusBadGateway, 50201, "failed to get reply")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":      reply.Text,
		"provider":   reply.Provider,
		"model":      reply.Model,
		"agent_used": reply.AgentUsed,
		"tool_calls": reply.ToolCalls,
		"timestamp":  reply.Timestamp,
	})
}

func (h *Handler) ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": assistant.Agents()})
}

func (h *Handler) History(c *gin.Context) {
	sessionID := c.Param("session_id")
	entries, err := h.Assistant.History(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "session not found or expired")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load history")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"history":    entries,
	})
}
