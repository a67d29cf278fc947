package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/queue"
	"github.com/leadloop/engage/internal/services/ai"
	"github.com/leadloop/engage/internal/services/analytics"
)

// ConversationAnalyzer processes conversation analysis jobs
type ConversationAnalyzer struct {
	analyticsService *analytics.Service
	analyticsRepo    database.AnalyticsRepositoryInterface
	jobQueue         queue.JobQueue // For re-enqueueing jobs with delays
}

// NewConversationAnalyzer creates a new conversation analyzer
func NewConversationAnalyzer(
	analyticsService *analytics.Service,
	analyticsRepo database.AnalyticsRepositoryInterface,
	jobQueue queue.JobQueue,
) *ConversationAnalyzer {
	return &ConversationAnalyzer{
		analyticsService: analyticsService,
		analyticsRepo:    analyticsRepo,
		jobQueue:         jobQueue,
	}
}

// ProcessConversationAnalysisJob processes a single-contact analysis job
func (a *ConversationAnalyzer) ProcessConversationAnalysisJob(ctx context.Context, job *queue.Job) error {
	if job.Phone == "" {
		return fmt.Errorf("phone is required for conversation analysis job")
	}

	record, err := a.analyticsService.AnalyzeAndUpdateContact(ctx, job.Phone)
	if err != nil {
		// A contact with no assignment has no conversation to analyze; the
		// job is complete, not failed
		if errors.Is(err, database.ErrNotFound) {
			log.Printf("No conversation found for job %s, skipping", job.ID)
			return nil
		}
		return fmt.Errorf("failed to analyze conversation: %w", err)
	}

	log.Printf("Analyzed contact conversation: level=%s score=%d messages=%d",
		record.InterestLevel, record.InterestScore, record.TotalMessages)
	return nil
}

// ProcessReanalyzeContactsJob sweeps every tracked contact through analysis
func (a *ConversationAnalyzer) ProcessReanalyzeContactsJob(ctx context.Context, job *queue.Job) error {
	phones, err := a.analyticsRepo.ListAllPhones(ctx)
	if err != nil {
		return fmt.Errorf("failed to list contacts for reanalysis: %w", err)
	}

	analyzed := 0
	for _, phone := range phones {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := a.analyticsService.AnalyzeAndUpdateContact(ctx, phone); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			log.Printf("Failed to reanalyze contact: %v", err)
			continue
		}
		analyzed++
	}

	log.Printf("Reanalyzed %d of %d contacts", analyzed, len(phones))
	return nil
}

// ProcessJob processes a job based on its type
func (a *ConversationAnalyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// A job delivered before its NotBefore (the delayed exchange may be
	// missing) goes back on the queue; ack only after the re-enqueue landed
	// so the job is never dropped.
	if !job.ShouldProcess() {
		log.Printf("Job %s not ready yet (NotBefore: %v), returning to queue", job.ID, job.NotBefore)
		if a.jobQueue != nil {
			if enqueueErr := a.jobQueue.Enqueue(ctx, job); enqueueErr != nil {
				log.Printf("Failed to re-enqueue not-ready job %s: %v", job.ID, enqueueErr)
				if nackErr := msg.Nack(true); nackErr != nil {
					log.Printf("Failed to nack not-ready job: %v", nackErr)
				}
				return nil
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack re-enqueued job: %v", ackErr)
			}
			return nil
		}
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack not-ready job: %v", nackErr)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeConversationAnalysis:
		if err := a.ProcessConversationAnalysisJob(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err, "conversation analysis")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	case queue.JobTypeReanalyzeContacts:
		if err := a.ProcessReanalyzeContactsJob(ctx, job); err != nil {
			// Sweep failures are less critical, just log
			if nackErr := msg.Nack(false); nackErr != nil { // Don't requeue sweep jobs
				log.Printf("Failed to nack reanalysis job: %v", nackErr)
			}
			return fmt.Errorf("reanalysis failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack reanalysis job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with intelligent retry logic
func (a *ConversationAnalyzer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, jobType string) error {
	// Check if it's a quota error (should not retry immediately)
	if ai.IsQuotaError(err) {
		log.Printf("Quota exceeded for %s job %s: %v", jobType, job.ID, err)

		// For quota errors, re-enqueue with long delay (1 hour minimum)
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		log.Printf("Re-enqueueing %s job %s with NotBefore=%v (quota exhausted, retry in %v)",
			jobType, job.ID, notBefore, retryDelay)

		// Create new job with delayed retry
		delayedJob := &queue.Job{
			ID:         job.ID,
			Type:       job.Type,
			Phone:      job.Phone,
			NotBefore:  &notBefore,
			NotAfter:   job.NotAfter,
			Metadata:   job.Metadata,
			CreatedAt:  job.CreatedAt,
			RetryCount: job.RetryCount + 1,
			MaxRetries: job.MaxRetries,
		}

		// Ack the current message
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job before re-enqueue: %v", ackErr)
		}

		// Re-enqueue with delay using NotBefore (RabbitMQ delayed exchange will handle this)
		if a.jobQueue != nil {
			if enqueueErr := a.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue job %s with delay: %v", job.ID, enqueueErr)
				// If re-enqueue fails, send to DLQ
				return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
			}
			log.Printf("Successfully re-enqueued %s job %s for retry at %v", jobType, job.ID, notBefore)
			return nil // Successfully handled
		}

		// If no queue access, nack without requeue to prevent spam
		log.Printf("Warning: No queue access, cannot re-enqueue job with delay. Sending to DLQ.")
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Printf("Failed to nack quota error job: %v", nackErr)
		}

		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	// Check if it's a rate limit error (should retry with backoff)
	if ai.IsRateLimitError(err) {
		log.Printf("Rate limited for %s job %s: %v", jobType, job.ID, err)

		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		// For rate limits, re-enqueue with delay using NotBefore
		if job.CanRetry() && a.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := &queue.Job{
				ID:         job.ID,
				Type:       job.Type,
				Phone:      job.Phone,
				NotBefore:  &notBefore,
				NotAfter:   job.NotAfter,
				Metadata:   job.Metadata,
				CreatedAt:  job.CreatedAt,
				RetryCount: job.RetryCount + 1,
				MaxRetries: job.MaxRetries,
			}

			// Ack the current message
			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack rate limited job: %v", ackErr)
			}

			// Re-enqueue with delay
			if enqueueErr := a.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue rate limited job %s: %v", job.ID, enqueueErr)
				// Fall back to nack with requeue
				if nackErr := msg.Nack(true); nackErr != nil {
					log.Printf("Failed to nack rate limited job: %v", nackErr)
				}
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			log.Printf("Rate limited: re-enqueued %s job %s for retry at %v (delay: %v)",
				jobType, job.ID, notBefore, retryDelay)
			return nil // Successfully handled
		}

		// Fallback: nack with requeue (immediate retry)
		if job.CanRetry() {
			job.IncrementRetry()
			log.Printf("Rate limit: will retry job %s immediately (attempt %d/%d)",
				job.ID, job.RetryCount, job.MaxRetries)
			if nackErr := msg.Nack(true); nackErr != nil {
				log.Printf("Failed to nack rate limited job: %v", nackErr)
			}
			// Return error to signal worker to wait before processing next job
			return fmt.Errorf("rate limited (will retry): %w", err)
		}
	}

	// For other errors, use standard retry logic
	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("%s job %s failed (attempt %d/%d): %v, will retry", jobType, job.ID, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job: %v", nackErr)
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	log.Printf("%s job %s failed after %d retries: %v, sending to DLQ", jobType, job.ID, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack job to DLQ: %v", nackErr)
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
