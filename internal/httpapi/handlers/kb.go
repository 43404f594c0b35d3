package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
)

type kbReq struct {
	KBName           string   `json:"kb_name" binding:"required"`
	VectorStore      string   `json:"vector_store" binding:"required"`
	AllowedFileTypes []string `json:"allowed_file_types"`
	ParsingLibrary   string   `json:"parsing_library"`
	ChunkingStrategy string   `json:"chunking_strategy"`
	ChunkSize        int      `json:"chunk_size" binding:"gte=0"`
	ChunkOverlap     int      `json:"chunk_overlap" binding:"gte=0"`
	MetadataStrategy string   `json:"metadata_strategy"`
}

func (r kbReq) model() *hub.KnowledgeBase {
	types := r.AllowedFileTypes
	if types == nil {
		types = []string{}
	}
	return &hub.KnowledgeBase{
		KBName:           r.KBName,
		VectorStore:      r.VectorStore,
		AllowedFileTypes: types,
		ParsingLibrary:   r.ParsingLibrary,
		ChunkingStrategy: r.ChunkingStrategy,
		ChunkSize:        r.ChunkSize,
		ChunkOverlap:     r.ChunkOverlap,
		MetadataStrategy: r.MetadataStrategy,
	}
}

// CreateKnowledgeBase stores the configuration as pending and queues an
// ingest job. Without a queue the job runs before the response.
func (h *Handler) CreateKnowledgeBase(c *gin.Context) {
	var req kbReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	ctx := c.Request.Context()

	// 1) knowledge base row
	kb := req.model()
	if err := h.Hub.CreateKnowledgeBase(ctx, kb); err != nil {
		h.Log.Error("kb", "failed to create knowledge base", map[string]any{"error": err})
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// 2) job row
	job := &hub.IngestJob{KBID: kb.ID}
	if err := h.Hub.CreateJob(ctx, job); err != nil {
		h.Log.Error("kb", "failed to create ingest job", map[string]any{"kb_id": kb.ID, "error": err})
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// 3) enqueue, or run inline
	if h.Jobs != nil {
		if err := h.Jobs.PublishJob(ctx, job.ID); err != nil {
			h.Log.Error("kb", "failed to publish ingest job", map[string]any{"job_id": job.ID, "error": err})
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	} else {
		// the outcome is recorded on the job and the knowledge base
		_ = h.Ingester.Handle(ctx, job.ID)
		if fresh, err := h.Hub.GetKnowledgeBase(ctx, kb.ID); err == nil {
			kb = fresh
		}
	}

	h.Log.Info("kb", "knowledge base created", map[string]any{"kb_id": kb.ID, "kb_name": kb.KBName, "job_id": job.ID})
	c.JSON(http.StatusOK, gin.H{
		"message": "Knowledge Base created successfully",
		"kb_id":   kb.ID,
		"job_id":  job.ID,
		"data":    kb,
	})
}

func (h *Handler) ListKnowledgeBases(c *gin.Context) {
	kbs, err := h.Hub.ListKnowledgeBases(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list knowledge bases")
		return
	}
	c.JSON(http.StatusOK, kbs)
}

func (h *Handler) GetKnowledgeBase(c *gin.Context) {
	kb, err := h.Hub.GetKnowledgeBase(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failLookup(c, err, "Knowledge Base not found.")
		return
	}
	c.JSON(http.StatusOK, kb)
}

func (h *Handler) UpdateKnowledgeBase(c *gin.Context) {
	var req kbReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	kb := req.model()
	if err := h.Hub.UpdateKnowledgeBase(c.Request.Context(), id, kb); err != nil {
		h.failLookup(c, err, "Knowledge Base not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Knowledge Base updated successfully",
		"kb_id":   id,
		"data":    kb,
	})
}

func (h *Handler) DeleteKnowledgeBase(c *gin.Context) {
	id := c.Param("id")
	if err := h.Hub.DeleteKnowledgeBase(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, "Knowledge Base not found.")
		return
	}
	h.Log.Info("kb", "knowledge base deleted", map[string]any{"kb_id": id})
	c.JSON(http.StatusOK, gin.H{
		"message": "Knowledge Base deleted successfully",
		"kb_id":   id,
	})
}

func (h *Handler) GetIngestJob(c *gin.Context) {
	j, err := h.Hub.GetJobByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failLookup(c, err, "job not found")
		return
	}
	common.OK(c, http.StatusOK, gin.H{"job": j})
}

// failLookup maps hub.ErrNotFound to 404 and anything else to 500.
func (h *Handler) failLookup(c *gin.Context, err error, notFoundMsg string) {
	if errors.Is(err, hub.ErrNotFound) {
		common.Fail(c, http.StatusNotFound, 40404, notFoundMsg)
		return
	}
	h.Log.Error("hub", "database error", map[string]any{"path": c.Request.URL.Path, "error": err})
	common.Fail(c, http.StatusInternalServerError, 50004, "db error")
}
