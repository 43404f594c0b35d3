package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
)

type databaseReq struct {
	Name     string `json:"name" binding:"required"`
	DBType   string `json:"db_type" binding:"required"`
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port" binding:"gt=0,lte=65535"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r databaseReq) model() *hub.DatabaseConnection {
	return &hub.DatabaseConnection{
		Name:     r.Name,
		DBType:   r.DBType,
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
	}
}

func (h *Handler) CreateDatabase(c *gin.Context) {
	var req databaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	d := req.model()
	if err := h.Hub.CreateDatabase(c.Request.Context(), d); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	h.Log.Info("databases", "database connection created", map[string]any{"db_id": d.ID, "name": d.Name})
	c.JSON(http.StatusOK, gin.H{
		"message": "Database connection created successfully",
		"db_id":   d.ID,
		"data":    d,
	})
}

func (h *Handler) ListDatabases(c *gin.Context) {
	dbs, err := h.Hub.ListDatabases(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list database connections")
		return
	}
	c.JSON(http.StatusOK, dbs)
}

func (h *Handler) GetDatabase(c *gin.Context) {
	d, err := h.Hub.GetDatabase(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failLookup(c, err, "Database connection not found.")
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateDatabase keeps the stored password when none is sent.
func (h *Handler) UpdateDatabase(c *gin.Context) {
	var req databaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	d := req.model()
	if err := h.Hub.UpdateDatabase(c.Request.Context(), id, d); err != nil {
		h.failLookup(c, err, "Database connection not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Database connection updated successfully",
		"db_id":   id,
		"data":    d,
	})
}

func (h *Handler) DeleteDatabase(c *gin.Context) {
	id := c.Param("id")
	if err := h.Hub.DeleteDatabase(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, "Database connection not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Database connection deleted successfully",
		"db_id":   id,
	})
}
