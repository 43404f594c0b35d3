package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
)

type toolReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Code        string `json:"code" binding:"required"`
}

func (h *Handler) CreateTool(c *gin.Context) {
	var req toolReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	t := &hub.CustomTool{Name: req.Name, Description: req.Description, Code: req.Code}
	if err := h.Hub.CreateTool(c.Request.Context(), t); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	h.Log.Info("tools", "custom tool created", map[string]any{"tool_id": t.ID, "name": t.Name})
	c.JSON(http.StatusOK, gin.H{
		"message": "Custom tool created successfully",
		"tool_id": t.ID,
		"data":    t,
	})
}

type toolDetail struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"tool_name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	Builtin     bool           `json:"builtin"`
}

// ListTools lists the built-in tools followed by the custom ones.
func (h *Handler) ListTools(c *gin.Context) {
	custom, err := h.Hub.ListTools(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list tools")
		return
	}

	builtin := h.Assistant.Tools()
	out := make([]toolDetail, 0, len(builtin)+len(custom))
	for _, t := range builtin {
		out = append(out, toolDetail{Name: t.Name, Description: t.Description, Schema: t.Schema, Builtin: true})
	}
	for _, t := range custom {
		out = append(out, toolDetail{ID: t.ID, Name: t.Name, Description: t.Description, Schema: map[string]any{}})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (h *Handler) GetTool(c *gin.Context) {
	t, err := h.Hub.GetTool(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failLookup(c, err, "Custom tool not found.")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTool(c *gin.Context) {
	var req toolReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	t := &hub.CustomTool{Name: req.Name, Description: req.Description, Code: req.Code}
	if err := h.Hub.UpdateTool(c.Request.Context(), id, t); err != nil {
		h.failLookup(c, err, "Custom tool not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Custom tool updated successfully",
		"tool_id": id,
		"data":    t,
	})
}

func (h *Handler) DeleteTool(c *gin.Context) {
	id := c.Param("id")
	if err := h.Hub.DeleteTool(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, "Custom tool not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Custom tool deleted successfully",
		"tool_id": id,
	})
}
