package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/guruji-chat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	cfg := h.Cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Log))
	r.Use(middleware.Recovery(h.Log))
	if cfg.Server.CorsAllowedOrigin != "" {
		r.Use(middleware.CORS(cfg.Server.CorsAllowedOrigin))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)

	// chat
	r.POST("/new-session", h.NewSession)
	r.POST("/chat", h.Chat)
	r.GET("/history/:session_id", h.History)
	r.GET("/agents", h.ListAgents)

	// hub reads
	r.GET("/kb/list", h.ListKnowledgeBases)
	r.GET("/kb/:id", h.GetKnowledgeBase)
	r.GET("/tools", h.ListTools)
	r.GET("/tools/:id", h.GetTool)
	r.GET("/databases/list", h.ListDatabases)
	r.GET("/databases/:id", h.GetDatabase)
	r.GET("/prompts/list", h.ListPrompts)
	r.GET("/ingest-jobs/:id", h.GetIngestJob)

	// hub writes (JWT required when AUTH_REQUIRED=true)
	w := r.Group("/")
	if cfg.Server.AuthRequired {
		w.Use(middleware.AuthRequired(cfg.Server.JWTSecret))
	}
	w.POST("/kb/create", h.CreateKnowledgeBase)
	w.PUT("/kb/:id", h.UpdateKnowledgeBase)
	w.DELETE("/kb/:id", h.DeleteKnowledgeBase)
	w.POST("/tools/create", h.CreateTool)
	w.PUT("/tools/:id", h.UpdateTool)
	w.DELETE("/tools/:id", h.DeleteTool)
	w.POST("/databases/create", h.CreateDatabase)
	w.PUT("/databases/:id", h.UpdateDatabase)
	w.DELETE("/databases/:id", h.DeleteDatabase)
	w.POST("/prompts/create", h.CreatePrompt)
	w.DELETE("/prompts/:id", h.DeletePrompt)

	return r
}
