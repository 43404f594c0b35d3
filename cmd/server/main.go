package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/guruji-chat/internal/ai"
	"github.com/suPer8Hu/guruji-chat/internal/assistant"
	"github.com/suPer8Hu/guruji-chat/internal/config"
	"github.com/suPer8Hu/guruji-chat/internal/db"
	"github.com/suPer8Hu/guruji-chat/internal/history"
	"github.com/suPer8Hu/guruji-chat/internal/httpapi"
	"github.com/suPer8Hu/guruji-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
	"github.com/suPer8Hu/guruji-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/guruji-chat/internal/store/redisstore"
)

const logModule = "server"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.IsProduction(), false)
	defer func() { _ = log.Sync() }()

	fatal := func(msg string, err error) {
		log.Error(logModule, msg, map[string]any{"error": err})
		_ = log.Sync()
		os.Exit(1)
	}

	// 1) database
	gdb, err := db.Connect(cfg.Server.DBDSN)
	if err != nil {
		fatal("db connect", err)
	}
	repo := hub.NewRepo(gdb)
	if err := repo.Migrate(context.Background()); err != nil {
		fatal("db migrate", err)
	}

	// 2) history: redis when configured, memory otherwise
	var hist history.Store = history.NewMemoryStore(cfg.Server.SessionTTL)
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Server.SessionTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn(logModule, "redis unavailable, using in-memory history", map[string]any{"error": err.Error()})
		} else {
			defer rs.Close()
			hist = rs
		}
	}

	// 3) providers
	reg := ai.NewRegistry()
	ai.RegisterDefaults(reg, ai.Defaults{
		GeminiAPIKey:  cfg.AI.GeminiAPIKey,
		OpenAIBaseURL: cfg.AI.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.AI.OpenAIAPIKey,
		OllamaBaseURL: cfg.AI.OllamaBaseURL,
		OllamaModel:   cfg.AI.OllamaModel,
	})
	svc := assistant.NewService(hist, reg, repo, cfg.Server.ChatContextWindowSize, log)

	// 4) ingest queue: inline processing when unset
	var jobs handlers.JobPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			fatal("rabbit publisher", err)
		}
		defer pub.Close()
		jobs = pub
	}

	h := handlers.NewHandler(cfg, log, svc, repo, jobs)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info(logModule, "listening", map[string]any{"addr": cfg.Server.Addr, "providers": reg.Names()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("listen", err)
		}
	}()

	<-ctx.Done()
	log.Info(logModule, "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(logModule, "shutdown", map[string]any{"error": err})
	}
}
