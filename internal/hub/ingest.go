package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/guruji-chat/internal/logger"
)

const logModule = "ingest"

// Ingester prepares a knowledge base described by an ingest job. It runs
// in the worker, or inline in the server when no queue is configured.
type Ingester struct {
	repo *Repo
	log  logger.Logger
}

func NewIngester(repo *Repo, log logger.Logger) *Ingester {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingester{repo: repo, log: log}
}

// Handle moves the job to running, validates the knowledge base and marks
// both records with the outcome. The returned error is the job failure.
func (in *Ingester) Handle(ctx context.Context, jobID string) error {
	start := time.Now()

	// 1) claim
	_ = in.repo.UpdateJobStatusRunning(ctx, jobID)

	// 2) load
	job, err := in.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	kb, err := in.repo.GetKnowledgeBase(ctx, job.KBID)
	if err != nil {
		return in.fail(ctx, job, fmt.Errorf("knowledge base %s: %w", job.KBID, err), start)
	}

	// 3) prepare
	if err := checkChunking(kb); err != nil {
		return in.fail(ctx, job, err, start)
	}

	// 4) publish outcome
	if err := in.repo.SetKnowledgeBaseStatus(ctx, kb.ID, KBReady); err != nil {
		return in.fail(ctx, job, err, start)
	}
	if err := in.repo.MarkJobSucceeded(ctx, job.ID); err != nil {
		return err
	}

	in.log.Info(logModule, "knowledge base ready", map[string]any{
		"job_id": job.ID,
		"kb_id":  kb.ID,
		"cost":   time.Since(start).String(),
	})
	return nil
}

func (in *Ingester) fail(ctx context.Context, job *IngestJob, cause error, start time.Time) error {
	if !errors.Is(cause, ErrNotFound) {
		_ = in.repo.SetKnowledgeBaseStatus(ctx, job.KBID, KBFailed)
	}
	if err := in.repo.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil {
		in.log.Error(logModule, "failed to mark job failed", map[string]any{
			"job_id": job.ID,
			"error":  err,
		})
	}
	in.log.Warn(logModule, "ingest job failed", map[string]any{
		"job_id": job.ID,
		"kb_id":  job.KBID,
		"cost":   time.Since(start).String(),
		"error":  cause.Error(),
	})
	return cause
}

func checkChunking(kb *KnowledgeBase) error {
	if kb.ChunkSize <= 0 {
		return nil
	}
	if kb.ChunkOverlap >= kb.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", kb.ChunkOverlap, kb.ChunkSize)
	}
	return nil
}
