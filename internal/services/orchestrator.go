package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/ui"
)

// BulkRunner drives many async jobs to completion in one batch: all jobs
// are started up front so the server works on them concurrently, then a
// single poll loop sweeps the jobs still running and downloads each one's
// results the moment it completes, not when the whole batch is done.
type BulkRunner struct {
	jobClient    *JobClient
	downloader   *Downloader
	logger       *lib.Logger
	pollInterval time.Duration
}

// NewBulkRunner creates a batch runner.
func NewBulkRunner(jobClient *JobClient, downloader *Downloader, logger *lib.Logger, pollInterval time.Duration) *BulkRunner {
	return &BulkRunner{
		jobClient:    jobClient,
		downloader:   downloader,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Meter returns the transfer statistics accumulated by the runner's
// downloader over the batch.
func (r *BulkRunner) Meter() *ui.TransferMeter {
	return r.downloader.Meter()
}

// pending is a batch slot for one job that has not reached a terminal
// phase yet.
type pending struct {
	index int
	job   *RunningJob
}

// RunAll starts every job, polls them in interleaved sweeps and downloads
// results as each job completes. One outcome is returned per input job, in
// input order, with per-job failures recorded in the outcome rather than
// aborting the batch.
//
// Cancelling ctx stops the batch during a sleep; jobs already running on
// the server keep running there.
func (r *BulkRunner) RunAll(ctx context.Context, jobs []*CreatedJob, destDir string) []models.JobOutcome {
	batchID := uuid.New().String()
	r.logger.Info("Starting job batch", "batch", batchID, "jobs", len(jobs))

	outcomes := make([]models.JobOutcome, len(jobs))
	active := make([]pending, 0, len(jobs))

	for i, job := range jobs {
		outcomes[i].Location = job.Location()
		running, err := job.Start()
		if err != nil {
			r.logger.Error("Failed to start job", "batch", batchID, "job", job.Location(), "error", err)
			outcomes[i].Phase = models.PhaseError
			outcomes[i].Err = err
			continue
		}
		active = append(active, pending{index: i, job: running})
	}

	for len(active) > 0 {
		remaining := active[:0]
		for _, p := range active {
			phase, err := p.job.Poll()
			if err != nil {
				outcomes[p.index].Phase = models.PhaseError
				outcomes[p.index].Err = err
				continue
			}
			lib.LogJobPhase(r.logger, p.job.Location(), string(phase))

			if phase.IsActive() {
				remaining = append(remaining, p)
				continue
			}

			r.finishJob(p, outcomes, destDir)
		}
		active = remaining

		if len(active) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			for _, p := range active {
				outcomes[p.index].Phase = models.PhaseError
				outcomes[p.index].Err = ctx.Err()
			}
			r.logger.Warn("Job batch cancelled", "batch", batchID, "unfinished", len(active))
			return outcomes
		case <-time.After(r.pollInterval):
		}
	}

	r.logger.Info("Job batch finished", "batch", batchID)
	return outcomes
}

// finishJob records a terminal job's outcome, downloading its results when
// it completed successfully.
func (r *BulkRunner) finishJob(p pending, outcomes []models.JobOutcome, destDir string) {
	outcome := &outcomes[p.index]

	completed, err := p.job.Complete()
	if err != nil {
		var failed *JobFailedError
		if errors.As(err, &failed) {
			outcome.Phase = failed.Phase
			outcome.Message = failed.Message
		} else {
			outcome.Phase = models.PhaseError
		}
		outcome.Err = err
		r.downloader.Meter().RecordFailure()
		r.logger.Error("Job failed", "job", p.job.Location(), "error", err)
		return
	}

	outcome.Phase = models.PhaseCompleted
	files, err := r.downloader.DownloadResults(completed, destDir)
	outcome.Files = files
	if err != nil {
		outcome.Err = err
		r.logger.Error("Download failed", "job", p.job.Location(), "error", err)
	}
}
