package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/leadloop/engage/internal/queue"
	"go.uber.org/zap"
)

// Reprocessor schedules the twice-daily contact re-analysis sweeps
type Reprocessor struct {
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewReprocessor creates a new reprocessor
func NewReprocessor(jobQueue queue.JobQueue, logger *zap.Logger) *Reprocessor {
	return &Reprocessor{
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ScheduleReanalysisJobs enqueues the next two sweep jobs (08:00 and 20:00)
func (r *Reprocessor) ScheduleReanalysisJobs(ctx context.Context) error {
	now := time.Now()
	nextMorning := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location())
	nextEvening := time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location())

	// If we're past morning time today, schedule for tomorrow
	if now.After(nextMorning) {
		nextMorning = nextMorning.Add(24 * time.Hour)
	}

	// If we're past evening time today, schedule for tomorrow
	if now.After(nextEvening) {
		nextEvening = nextEvening.Add(24 * time.Hour)
	}

	if err := r.createReanalysisJob(ctx, nextMorning); err != nil {
		r.logger.Warn("failed_to_schedule_morning_reanalysis_job", zap.Error(err))
	}
	if err := r.createReanalysisJob(ctx, nextEvening); err != nil {
		r.logger.Warn("failed_to_schedule_evening_reanalysis_job", zap.Error(err))
	}

	r.logger.Info("scheduled_reanalysis_jobs",
		zap.Time("next_morning", nextMorning),
		zap.Time("next_evening", nextEvening),
	)

	return nil
}

// ScheduleFollowUpSweep enqueues the next day's run of a completed sweep.
// Only the completed job's slot is rescheduled so the two daily slots never
// accumulate duplicate jobs.
func (r *Reprocessor) ScheduleFollowUpSweep(ctx context.Context, completed *queue.Job) error {
	hour := 8
	if completed != nil && completed.NotBefore != nil {
		hour = completed.NotBefore.Hour()
	}

	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}

	if err := r.createReanalysisJob(ctx, next); err != nil {
		r.logger.Warn("failed_to_schedule_follow_up_sweep", zap.Error(err))
		return err
	}

	r.logger.Info("scheduled_follow_up_sweep", zap.Time("next_run", next))
	return nil
}

// createReanalysisJob enqueues one sweep job for the given time
func (r *Reprocessor) createReanalysisJob(ctx context.Context, notBefore time.Time) error {
	job := queue.NewJob(queue.JobTypeReanalyzeContacts, "")
	job.NotBefore = &notBefore

	// Set NotAfter to 1 day after scheduled time for garbage collection
	notAfter := notBefore.Add(24 * time.Hour)
	job.NotAfter = &notAfter

	if err := r.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue reanalysis job: %w", err)
	}

	return nil
}
