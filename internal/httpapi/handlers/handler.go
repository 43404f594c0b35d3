package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/assistant"
	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/config"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
)

// JobPublisher enqueues ingest jobs for the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Cfg       config.Config
	Log       logger.Logger
	Assistant *assistant.Service
	Hub       *hub.Repo
	Ingester  *hub.Ingester
	// Jobs is nil when no queue is configured; jobs then run inline.
	Jobs JobPublisher
}

func NewHandler(cfg config.Config, log logger.Logger, svc *assistant.Service, repo *hub.Repo, jobs JobPublisher) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		Cfg:       cfg,
		Log:       log,
		Assistant: svc,
		Hub:       repo,
		Ingester:  hub.NewIngester(repo, log),
		Jobs:      jobs,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{"pong": true})
}
