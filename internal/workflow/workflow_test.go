// internal/workflow/workflow_test.go
package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/metrics"
	"reviewdesk/internal/models"
)

// memoryStore is an in-memory RecordStore with the same guarded-update
// semantics as the PostgreSQL implementation.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*models.ReplyRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*models.ReplyRecord)}
}

func key(p models.Platform, id string) string { return string(p) + "/" + id }

func (m *memoryStore) Get(_ context.Context, p models.Platform, id string) (*models.ReplyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key(p, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) Create(_ context.Context, r *models.ReplyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(r.Platform, r.PlatformReviewID)
	if _, ok := m.records[k]; ok {
		return apperrors.NewDuplicateReplyError(string(r.Platform), r.PlatformReviewID)
	}
	cp := *r
	m.records[k] = &cp
	return nil
}

func (m *memoryStore) Update(_ context.Context, r *models.ReplyRecord, expected models.LifecycleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(r.Platform, r.PlatformReviewID)
	current, ok := m.records[k]
	if !ok || current.State != expected {
		return apperrors.NewStaleRecordError(r.ID)
	}
	cp := *r
	m.records[k] = &cp
	return nil
}

func testReview() models.Review {
	return models.Review{
		Platform:         models.PlatformBaemin,
		PlatformReviewID: "r-1",
		ReviewerName:     "홍길동",
		Rating:           5,
		ReviewText:       "맛있어요",
		ReviewDate:       time.Now(),
	}
}

func testDraft() *models.ReplyDraft {
	return &models.ReplyDraft{
		Body:         "감사합니다",
		CompleteText: "안녕하세요 홍길동님 감사합니다",
		Source:       models.SourceModel,
		Confidence:   0.9,
	}
}

func newWorkflow(t *testing.T) (*Workflow, *memoryStore) {
	store := newMemoryStore()
	return New(store, 3, logger.NewTestLogger(t)), store
}

// ==========================
// Initial State Tests
// ==========================

func TestInitialState(t *testing.T) {
	valid := &models.ValidationResult{IsValid: true}
	invalid := &models.ValidationResult{IsValid: false}

	positiveAuto := models.ReviewAnalysis{
		Sentiment: models.SentimentPositive,
		RiskLevel: models.RiskLow,
	}

	tests := []struct {
		name       string
		platform   models.Platform
		analysis   models.ReviewAnalysis
		autoOptIn  bool
		validation *models.ValidationResult
		expected   models.LifecycleState
	}{
		{
			name:       "auto approval when everything aligns",
			platform:   models.PlatformBaemin,
			analysis:   positiveAuto,
			autoOptIn:  true,
			validation: valid,
			expected:   models.StateApproved,
		},
		{
			name:     "requires approval wins over everything",
			platform: models.PlatformBaemin,
			analysis: models.ReviewAnalysis{
				Sentiment:        models.SentimentPositive,
				RiskLevel:        models.RiskLow,
				RequiresApproval: true,
			},
			autoOptIn:  true,
			validation: valid,
			expected:   models.StatePendingApproval,
		},
		{
			name:       "coupangeats never auto-approves",
			platform:   models.PlatformCoupangEats,
			analysis:   positiveAuto,
			autoOptIn:  true,
			validation: valid,
			expected:   models.StateDraft,
		},
		{
			name:       "store without opt-in stays draft",
			platform:   models.PlatformBaemin,
			analysis:   positiveAuto,
			autoOptIn:  false,
			validation: valid,
			expected:   models.StateDraft,
		},
		{
			name:       "failed validation forces draft",
			platform:   models.PlatformBaemin,
			analysis:   positiveAuto,
			autoOptIn:  true,
			validation: invalid,
			expected:   models.StateDraft,
		},
		{
			name:     "neutral sentiment stays draft",
			platform: models.PlatformBaemin,
			analysis: models.ReviewAnalysis{
				Sentiment: models.SentimentNeutral,
				RiskLevel: models.RiskLow,
			},
			autoOptIn:  true,
			validation: valid,
			expected:   models.StateDraft,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review := testReview()
			review.Platform = tt.platform
			profile := models.StoreProfile{AutoApprovePositive: tt.autoOptIn}

			got := InitialState(review, profile, tt.analysis, tt.validation)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// ==========================
// Persistence Tests
// ==========================

func TestPersistDraft_CreatesRecord(t *testing.T) {
	wf, store := newWorkflow(t)
	ctx := context.Background()
	scheduledAt := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StateApproved, models.ReviewAnalysis{}, "store-1", scheduledAt)

	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.StateApproved, record.State)
	assert.Equal(t, "auto", record.ApprovedBy)
	assert.NotNil(t, record.ApprovedAt)
	assert.Equal(t, record.GeneratedText, record.ReplyText)
	assert.True(t, record.ScheduledPostAt.Equal(scheduledAt))

	stored, err := store.Get(ctx, models.PlatformBaemin, "r-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)
}

func TestPersistDraft_IdempotentOnExistingRecord(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	first, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StateDraft, models.ReviewAnalysis{}, "store-1", time.Now())
	require.NoError(t, err)

	second, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StateDraft, models.ReviewAnalysis{}, "store-1", time.Now())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0, second.RetryCount, "existing healthy record must not be touched")
}

func TestPersistDraft_RegeneratesRejectedRecord(t *testing.T) {
	wf, store := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StateApproved, models.ReviewAnalysis{}, "store-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, wf.MarkFailed(ctx, record, "금지어 포함"))

	fresh := &models.ReplyDraft{CompleteText: "새로 작성한 답글입니다", Source: models.SourceRegenerated}
	regenerated, err := wf.PersistDraft(ctx, testReview(), fresh,
		models.StateApproved, models.ReviewAnalysis{}, "store-1", time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, regenerated.RetryCount)
	assert.Equal(t, "새로 작성한 답글입니다", regenerated.GeneratedText)
	assert.Empty(t, regenerated.FailureReason)
	// Regenerated text goes back through a human even when the initial
	// state would have been auto-approved.
	assert.Equal(t, models.StatePendingApproval, regenerated.State)

	stored, err := store.Get(ctx, models.PlatformBaemin, "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingApproval, stored.State)
}

func TestPersistDraft_RetriesExhausted(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StateApproved, models.ReviewAnalysis{}, "store-1", time.Now())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, wf.MarkFailed(ctx, record, "거부됨"))
		record, err = wf.PersistDraft(ctx, testReview(), testDraft(),
			models.StatePendingApproval, models.ReviewAnalysis{}, "store-1", time.Now())
		require.NoError(t, err)
		require.NoError(t, wf.Approve(ctx, record, "owner"))
	}

	require.NoError(t, wf.MarkFailed(ctx, record, "또 거부됨"))
	_, err = wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{}, "store-1", time.Now())

	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeMaxRetriesExceeded, stdErr.Code)
}

// ==========================
// Transition Tests
// ==========================

func TestTransitions(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)

	t.Run("cannot send before approval", func(t *testing.T) {
		err := wf.MarkSent(ctx, record)
		require.Error(t, err)
		stdErr, ok := err.(*apperrors.StandardError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, stdErr.Code)
	})

	t.Run("approve sets canonical text and actor", func(t *testing.T) {
		require.NoError(t, wf.Approve(ctx, record, "owner@store"))
		assert.Equal(t, models.StateApproved, record.State)
		assert.Equal(t, record.GeneratedText, record.ReplyText)
		assert.Equal(t, "owner@store", record.ApprovedBy)
		assert.NotNil(t, record.ApprovedAt)
	})

	t.Run("sent is terminal", func(t *testing.T) {
		require.NoError(t, wf.MarkSent(ctx, record))
		assert.Equal(t, models.StateSent, record.State)
		assert.True(t, record.State.Terminal())

		err := wf.Approve(ctx, record, "owner@store")
		require.Error(t, err)
	})
}

func TestReject_ClearsTextAndReturnsToDraft(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, wf.Reject(ctx, record, "owner@store", "톤이 맞지 않음"))

	assert.Equal(t, models.StateDraft, record.State)
	assert.Empty(t, record.GeneratedText, "rejected text must not survive into the draft")
	assert.Empty(t, record.ReplyText)
	assert.Equal(t, "톤이 맞지 않음", record.FailureReason)
	assert.Equal(t, "owner@store", record.RejectedBy)
	assert.False(t, record.HasReply())
}

func TestReject_RecordIsRecomposedOnNextRun(t *testing.T) {
	wf, store := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)

	require.NoError(t, wf.Reject(ctx, record, "owner@store", "톤이 맞지 않음"))
	require.True(t, record.NeedsRegeneration(), "rejected record must stay eligible for a fresh draft")

	fresh := &models.ReplyDraft{CompleteText: "다시 작성한 답글입니다", Source: models.SourceRegenerated}
	regenerated, err := wf.PersistDraft(ctx, testReview(), fresh,
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())

	require.NoError(t, err)
	assert.Equal(t, "다시 작성한 답글입니다", regenerated.GeneratedText)
	assert.Equal(t, 1, regenerated.RetryCount)
	assert.Equal(t, models.StatePendingApproval, regenerated.State)
	assert.Empty(t, regenerated.FailureReason)
	assert.Empty(t, regenerated.RejectedBy)

	stored, err := store.Get(ctx, models.PlatformBaemin, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "다시 작성한 답글입니다", stored.GeneratedText)
}

func TestPendingApprovalGaugeTracksTransitions(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()
	base := testutil.ToFloat64(metrics.RepliesAwaitingApproval)

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.RepliesAwaitingApproval))

	require.NoError(t, wf.Approve(ctx, record, "owner@store"))
	assert.Equal(t, base, testutil.ToFloat64(metrics.RepliesAwaitingApproval),
		"approval must release the pending gauge")

	other := testReview()
	other.PlatformReviewID = "r-2"
	record, err = wf.PersistDraft(ctx, other, testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, wf.Reject(ctx, record, "owner@store", "다시 써주세요"))
	assert.Equal(t, base, testutil.ToFloat64(metrics.RepliesAwaitingApproval),
		"rejection must release the pending gauge")
}

func TestUpdate_StaleRecordSurfaces(t *testing.T) {
	wf, store := newWorkflow(t)
	ctx := context.Background()

	record, err := wf.PersistDraft(ctx, testReview(), testDraft(),
		models.StatePendingApproval, models.ReviewAnalysis{RequiresApproval: true}, "store-1", time.Now())
	require.NoError(t, err)

	// Another writer approves the record first.
	other, err := store.Get(ctx, models.PlatformBaemin, "r-1")
	require.NoError(t, err)
	require.NoError(t, wf.Approve(ctx, other, "other-writer"))

	err = wf.Approve(ctx, record, "late-writer")
	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStaleRecord, stdErr.Code)
}
