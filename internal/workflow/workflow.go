// Package workflow owns the reply lifecycle state machine. All state
// transitions go through here; the store only persists what the
// workflow has already deemed legal.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/metrics"
	"reviewdesk/internal/models"
)

// ErrNotFound is returned by RecordStore implementations when no record
// exists for the identity.
var ErrNotFound = errors.New("reply record not found")

// RecordStore persists reply records. Update must be guarded on the
// expected current state and fail with a stale-record error when another
// writer got there first.
type RecordStore interface {
	Get(ctx context.Context, platform models.Platform, platformReviewID string) (*models.ReplyRecord, error)
	Create(ctx context.Context, record *models.ReplyRecord) error
	Update(ctx context.Context, record *models.ReplyRecord, expectedState models.LifecycleState) error
}

type Workflow struct {
	store      RecordStore
	maxRetries int
	log        logger.Logger
}

func New(store RecordStore, maxRetries int, log logger.Logger) *Workflow {
	return &Workflow{
		store:      store,
		maxRetries: maxRetries,
		log: log.With(map[string]interface{}{
			"component": "workflow",
		}),
	}
}

// Lookup returns the existing record for a review identity, or nil when
// the review has never been processed.
func (w *Workflow) Lookup(ctx context.Context, platform models.Platform, platformReviewID string) (*models.ReplyRecord, error) {
	record, err := w.store.Get(ctx, platform, platformReviewID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MaxRetries exposes the configured regeneration cap.
func (w *Workflow) MaxRetries() int { return w.maxRetries }

// InitialState decides where a fresh draft enters the machine. Only a
// positive, low-or-medium risk review on a platform that permits it, at
// a store that opted in, and with a passing validation, skips the human.
func InitialState(review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis, validation *models.ValidationResult) models.LifecycleState {
	if analysis.RequiresApproval {
		return models.StatePendingApproval
	}
	if validation == nil || !validation.IsValid {
		return models.StateDraft
	}
	if review.Platform.AllowsAutoApproval() &&
		analysis.Sentiment == models.SentimentPositive &&
		analysis.RiskLevel != models.RiskHigh &&
		profile.AutoApprovePositive {
		return models.StateApproved
	}
	return models.StateDraft
}

// PersistDraft creates the record for a first-time review, or applies
// the regeneration transition when a previous reply was rejected.
// Existing healthy records are left alone.
func (w *Workflow) PersistDraft(ctx context.Context, review models.Review, draft *models.ReplyDraft, state models.LifecycleState, analysis models.ReviewAnalysis, storeID string, scheduledAt time.Time) (*models.ReplyRecord, error) {
	existing, err := w.store.Get(ctx, review.Platform, review.PlatformReviewID)
	switch {
	case err == nil:
		return w.applyRegeneration(ctx, existing, draft, state, scheduledAt)
	case errors.Is(err, ErrNotFound):
		// fall through to create
	default:
		return nil, err
	}

	now := time.Now()
	record := &models.ReplyRecord{
		ID:               uuid.New().String(),
		Platform:         review.Platform,
		PlatformReviewID: review.PlatformReviewID,
		StoreID:          storeID,
		GeneratedText:    draft.CompleteText,
		State:            state,
		RequiresApproval: analysis.RequiresApproval,
		ScheduledPostAt:  scheduledAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if state == models.StateApproved {
		record.ReplyText = draft.CompleteText
		record.ApprovedBy = "auto"
		record.ApprovedAt = &now
	}

	if err := w.store.Create(ctx, record); err != nil {
		return nil, err
	}
	if record.State == models.StatePendingApproval {
		metrics.RepliesAwaitingApproval.Inc()
	}
	return record, nil
}

// applyRegeneration gives a rejected record the fresh text, bumping the
// retry counter. Covers both platform rejections (FAILED) and human
// rejections (DRAFT with the text cleared). Any other existing record
// is returned unchanged.
func (w *Workflow) applyRegeneration(ctx context.Context, record *models.ReplyRecord, draft *models.ReplyDraft, state models.LifecycleState, scheduledAt time.Time) (*models.ReplyRecord, error) {
	if !record.NeedsRegeneration() {
		return record, nil
	}
	if record.RetryCount >= w.maxRetries {
		return record, apperrors.NewMaxRetriesExceededError(string(record.Platform), record.PlatformReviewID, record.RetryCount)
	}

	prev := record.State
	record.GeneratedText = draft.CompleteText
	record.ReplyText = ""
	record.FailureReason = ""
	record.RejectedBy = ""
	record.RetryCount++
	record.State = state
	if state == models.StateApproved {
		// Regenerated replies never skip the human again.
		record.State = models.StatePendingApproval
	}
	record.ScheduledPostAt = scheduledAt
	record.UpdatedAt = time.Now()

	if err := w.store.Update(ctx, record, prev); err != nil {
		return nil, err
	}
	if record.State == models.StatePendingApproval && prev != models.StatePendingApproval {
		metrics.RepliesAwaitingApproval.Inc()
	}
	w.log.Info("regenerated rejected reply", map[string]interface{}{
		"platform":   string(record.Platform),
		"reviewId":   record.PlatformReviewID,
		"retryCount": record.RetryCount,
	})
	return record, nil
}

// Approve moves a draft or pending record to approved, fixing the
// canonical reply text.
func (w *Workflow) Approve(ctx context.Context, record *models.ReplyRecord, actor string) error {
	if record.State != models.StateDraft && record.State != models.StatePendingApproval {
		return transitionError(record, models.StateApproved)
	}
	prev := record.State
	now := time.Now()
	record.State = models.StateApproved
	record.ReplyText = record.GeneratedText
	record.ApprovedBy = actor
	record.ApprovedAt = &now
	record.RejectedBy = ""
	record.UpdatedAt = now
	if err := w.store.Update(ctx, record, prev); err != nil {
		return err
	}
	if prev == models.StatePendingApproval {
		metrics.RepliesAwaitingApproval.Dec()
	}
	return nil
}

// Reject sends a pending record back to draft, recording who rejected
// it and why. Both texts are cleared so the next run recomposes with
// the rejection reason fed back into the prompt.
func (w *Workflow) Reject(ctx context.Context, record *models.ReplyRecord, actor, reason string) error {
	if record.State != models.StatePendingApproval {
		return transitionError(record, models.StateDraft)
	}
	prev := record.State
	record.State = models.StateDraft
	record.GeneratedText = ""
	record.ReplyText = ""
	record.FailureReason = reason
	record.RejectedBy = actor
	record.UpdatedAt = time.Now()
	if err := w.store.Update(ctx, record, prev); err != nil {
		return err
	}
	metrics.RepliesAwaitingApproval.Dec()
	return nil
}

// MarkSent finalizes a transmitted reply. Sent is the only terminal
// state.
func (w *Workflow) MarkSent(ctx context.Context, record *models.ReplyRecord) error {
	if record.State != models.StateApproved {
		return transitionError(record, models.StateSent)
	}
	prev := record.State
	record.State = models.StateSent
	record.FailureReason = ""
	record.UpdatedAt = time.Now()
	return w.store.Update(ctx, record, prev)
}

// MarkFailed records a platform rejection, making the record eligible
// for the regeneration loop.
func (w *Workflow) MarkFailed(ctx context.Context, record *models.ReplyRecord, reason string) error {
	if record.State != models.StateApproved {
		return transitionError(record, models.StateFailed)
	}
	prev := record.State
	record.State = models.StateFailed
	record.FailureReason = reason
	record.UpdatedAt = time.Now()
	return w.store.Update(ctx, record, prev)
}

func transitionError(record *models.ReplyRecord, target models.LifecycleState) error {
	return apperrors.NewInvalidTransitionError(string(record.State), string(target))
}
