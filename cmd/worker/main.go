package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/guruji-chat/internal/config"
	"github.com/suPer8Hu/guruji-chat/internal/db"
	"github.com/suPer8Hu/guruji-chat/internal/hub"
	"github.com/suPer8Hu/guruji-chat/internal/logger"
	"github.com/suPer8Hu/guruji-chat/internal/store/rabbitmq"
)

const logModule = "worker"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.IsProduction(), false)
	defer func() { _ = log.Sync() }()

	fatal := func(msg string, err error) {
		log.Error(logModule, msg, map[string]any{"error": err})
		_ = log.Sync()
		os.Exit(1)
	}

	if cfg.RabbitURL == "" {
		fatal("RABBIT_URL is required", nil)
	}

	gdb, err := db.Connect(cfg.Server.DBDSN)
	if err != nil {
		fatal("db connect", err)
	}
	repo := hub.NewRepo(gdb)
	if err := repo.Migrate(context.Background()); err != nil {
		fatal("db migrate", err)
	}
	ingester := hub.NewIngester(repo, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		fatal("rabbit dial", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		fatal("rabbit channel", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		fatal("queue declare", err)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		fatal("qos", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		fatal("consume", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(logModule, "worker started", map[string]any{
		"queue":       cfg.RabbitQueue,
		"concurrency": concurrency,
	})

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				jobID, err := rabbitmq.DecodeJob(d.Body)
				if err != nil {
					log.Warn(logModule, "bad message", map[string]any{"worker": workerID, "error": err.Error()})
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := ingester.Handle(ctx, jobID); err != nil {
					log.Warn(logModule, "job failed", map[string]any{
						"worker": workerID,
						"job_id": jobID,
						"cost":   time.Since(start).String(),
						"error":  err.Error(),
					})
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Error(logModule, "ack failed", map[string]any{"worker": workerID, "job_id": jobID, "error": err})
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info(logModule, "worker shutting down", nil)
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn(logModule, "delivery channel closed", nil)
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}
