// Package orchestrator drives the reply pipeline: fetch, classify,
// compose, validate, schedule, persist. One Batch handles one
// store/platform pair; Runner fans out over stores.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"reviewdesk/internal/archive"
	"reviewdesk/internal/classifier"
	"reviewdesk/internal/common/config"
	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/metrics"
	"reviewdesk/internal/common/observability"
	"reviewdesk/internal/composer"
	"reviewdesk/internal/models"
	"reviewdesk/internal/notify"
	"reviewdesk/internal/platform"
	"reviewdesk/internal/scheduler"
	"reviewdesk/internal/validator"
	"reviewdesk/internal/workflow"
)

// ProfileSource resolves a store's reply configuration. A (nil, nil)
// return means the store is unknown.
type ProfileSource interface {
	Get(ctx context.Context, storeID string) (*models.StoreProfile, error)
}

type Batch struct {
	crawler    platform.Crawler
	profiles   ProfileSource
	classifier *classifier.Classifier
	composer   *composer.Composer
	validator  *validator.Validator
	workflow   *workflow.Workflow
	notifier   notify.Notifier
	archiver   archive.Archiver
	obs        *observability.Observability
	cfg        config.PipelineConfig
	errs       *apperrors.ErrorHandler
	log        logger.Logger
}

func NewBatch(
	crawler platform.Crawler,
	profiles ProfileSource,
	cls *classifier.Classifier,
	cmp *composer.Composer,
	val *validator.Validator,
	wf *workflow.Workflow,
	notifier notify.Notifier,
	archiver archive.Archiver,
	obs *observability.Observability,
	cfg config.PipelineConfig,
	log logger.Logger,
) *Batch {
	return &Batch{
		crawler:    crawler,
		profiles:   profiles,
		classifier: cls,
		composer:   cmp,
		validator:  val,
		workflow:   wf,
		notifier:   notifier,
		archiver:   archiver,
		obs:        obs,
		cfg:        cfg,
		errs:       apperrors.NewErrorHandler(log),
		log: log.With(map[string]interface{}{
			"component": "orchestrator",
		}),
	}
}

// Run processes every fetched review for one store on one platform.
// An unknown store or a failed fetch aborts the run; everything after
// that degrades per review, never per batch.
func (b *Batch) Run(ctx context.Context, storeID string, p models.Platform) (*models.BatchSummary, error) {
	start := time.Now()

	profile, err := b.profiles.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.NewUnknownStoreError(storeID)
	}

	adapter, err := platform.New(p, b.log)
	if err != nil {
		return nil, err
	}

	reviews, err := platform.FetchByStore(ctx, b.crawler, adapter, storeID, b.cfg.FetchLimit, b.log)
	if err != nil {
		return nil, err
	}

	b.log.Info("batch started", map[string]interface{}{
		"storeId":  storeID,
		"platform": string(p),
		"reviews":  len(reviews),
	})

	summary := &models.BatchSummary{StoreID: storeID, Platform: p}
	results := make([]models.ProcessingResult, len(reviews))

	sem := make(chan struct{}, b.cfg.MaxConcurrentReviews)
	delay := time.Duration(b.cfg.InterCallDelay) * time.Millisecond
	var wg sync.WaitGroup

	skipRemaining := func(from int) {
		// Remaining reviews are skipped, not failed: the next run picks
		// them up.
		for j := from; j < len(reviews); j++ {
			results[j] = models.ProcessingResult{
				Platform:         reviews[j].Platform,
				PlatformReviewID: reviews[j].PlatformReviewID,
				Outcome:          models.OutcomeSkipped,
				Reason:           "run canceled",
			}
		}
	}

launch:
	for i := range reviews {
		if ctx.Err() != nil {
			skipRemaining(i)
			break
		}
		select {
		case <-ctx.Done():
			skipRemaining(i)
			break launch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = b.processReview(ctx, reviews[idx], *profile)
		}(i)

		if delay > 0 && i < len(reviews)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}
	wg.Wait()

	for _, r := range results {
		summary.Add(r)
		metrics.ReviewsProcessed.WithLabelValues(string(r.Platform), string(r.Outcome)).Inc()
		if b.obs != nil {
			b.obs.RecordReviewProcessed(ctx, string(r.Outcome))
		}
	}

	summary.ProcessingTime = time.Since(start)
	metrics.BatchDuration.WithLabelValues(string(p)).Observe(summary.ProcessingTime.Seconds())
	if b.obs != nil {
		b.obs.RecordBatchDuration(ctx, summary.ProcessingTime, string(p))
	}

	if b.archiver != nil {
		if err := b.archiver.IndexBatch(ctx, uuid.New().String(), summary.Results); err != nil {
			b.log.Warn("batch archive failed", map[string]interface{}{
				"storeId": storeID,
				"error":   err.Error(),
			})
		}
	}

	b.log.Info("batch finished", map[string]interface{}{
		"storeId":  storeID,
		"platform": string(p),
		"total":    summary.Total,
		"success":  summary.Success,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
		"duration": summary.ProcessingTime.String(),
	})
	return summary, nil
}

// processReview runs the five pipeline stages for one review. It never
// panics outward and never returns an error; every outcome is a tagged
// result.
func (b *Batch) processReview(ctx context.Context, review models.Review, profile models.StoreProfile) (result models.ProcessingResult) {
	start := time.Now()
	result = models.ProcessingResult{
		Platform:         review.Platform,
		PlatformReviewID: review.PlatformReviewID,
	}
	defer func() {
		if r := recover(); r != nil {
			result.Outcome = models.OutcomeFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			b.log.Error("review processing panicked", map[string]interface{}{
				"platform": string(review.Platform),
				"reviewId": review.PlatformReviewID,
				"panic":    fmt.Sprintf("%v", r),
			})
		}
		result.Duration = time.Since(start)
	}()

	// A reply already live on the platform ends the pipeline here.
	if review.ExistingReplyText != "" && review.ExistingFailureReason == "" {
		result.Outcome = models.OutcomeSkipped
		result.Reason = "reply already posted on platform"
		return result
	}

	existing, err := b.workflow.Lookup(ctx, review.Platform, review.PlatformReviewID)
	if err != nil {
		return b.failed(result, err)
	}
	if existing != nil {
		// A record that still holds an unrejected reply is done; one
		// whose reply was rejected, by the platform or by a human, goes
		// back through composition.
		if existing.HasReply() {
			result.Outcome = models.OutcomeSkipped
			result.Reason = "record already tracked"
			result.State = existing.State
			return result
		}
		if existing.RetryCount >= b.workflow.MaxRetries() {
			return b.failed(result, apperrors.NewMaxRetriesExceededError(
				string(review.Platform), review.PlatformReviewID, existing.RetryCount))
		}
	}

	analysis := b.stageClassify(ctx, review, profile)
	result.RiskLevel = analysis.RiskLevel
	result.RequiresApproval = analysis.RequiresApproval

	draft := b.stageCompose(ctx, review, profile, analysis, existing)
	validation := b.stageValidate(draft, review, profile, analysis)

	state := workflow.InitialState(review, profile, analysis, validation)
	scheduledAt := scheduler.PostableAt(review.ReviewDate, scheduler.For(analysis))

	stageStart := time.Now()
	record, err := b.workflow.PersistDraft(ctx, review, draft, state, analysis, profile.StoreID, scheduledAt)
	metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return b.failed(result, err)
	}

	if analysis.RiskLevel == models.RiskHigh && b.notifier != nil {
		// Fire and forget; a slow topic must not hold the semaphore.
		go func() {
			if err := b.notifier.NotifyRisk(context.WithoutCancel(ctx), review, analysis); err != nil {
				b.log.Warn("risk notification failed", map[string]interface{}{
					"platform": string(review.Platform),
					"reviewId": review.PlatformReviewID,
					"error":    err.Error(),
				})
			}
		}()
	}

	result.Outcome = models.OutcomeSuccess
	result.State = record.State
	result.AutoApproved = record.State == models.StateApproved && record.ApprovedBy == "auto"
	if !validation.IsValid {
		result.Reason = "validation failed, held as draft"
	}
	return result
}

func (b *Batch) stageClassify(ctx context.Context, review models.Review, profile models.StoreProfile) models.ReviewAnalysis {
	start := time.Now()
	analysis := b.classifier.Classify(ctx, review, profile)
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	return analysis
}

func (b *Batch) stageCompose(ctx context.Context, review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis, existing *models.ReplyRecord) *models.ReplyDraft {
	start := time.Now()
	var draft *models.ReplyDraft
	if existing != nil && existing.NeedsRegeneration() {
		draft = b.composer.Recompose(ctx, review, profile, analysis, existing)
	} else {
		draft = b.composer.Compose(ctx, review, profile, analysis)
	}
	metrics.StageDuration.WithLabelValues("compose").Observe(time.Since(start).Seconds())
	return draft
}

func (b *Batch) stageValidate(draft *models.ReplyDraft, review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis) *models.ValidationResult {
	start := time.Now()
	validation := b.validator.Validate(draft, review, profile, analysis)
	metrics.StageDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	return validation
}

func (b *Batch) failed(result models.ProcessingResult, err error) models.ProcessingResult {
	stdErr := b.errs.Handle(err, map[string]interface{}{
		"platform": string(result.Platform),
		"reviewId": result.PlatformReviewID,
	})
	result.Outcome = models.OutcomeFailed
	result.Error = stdErr.Error()
	return result
}
