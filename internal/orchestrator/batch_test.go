// internal/orchestrator/batch_test.go
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewdesk/internal/archive"
	"reviewdesk/internal/classifier"
	"reviewdesk/internal/common/config"
	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/composer"
	"reviewdesk/internal/llm"
	"reviewdesk/internal/models"
	"reviewdesk/internal/notify"
	"reviewdesk/internal/validator"
	"reviewdesk/internal/workflow"
)

// ==========================
// Fakes
// ==========================

type fakeCrawler struct {
	raws []map[string]interface{}
	err  error
}

func (f *fakeCrawler) FetchReviews(_ context.Context, _ string, limit int) ([]map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.raws) > limit {
		return f.raws[:limit], nil
	}
	return f.raws, nil
}

type fakeProfiles struct {
	profile *models.StoreProfile
}

func (f *fakeProfiles) Get(_ context.Context, _ string) (*models.StoreProfile, error) {
	return f.profile, nil
}

// memoryRecords mirrors the guarded semantics of the SQL store.
type memoryRecords struct {
	mu      sync.Mutex
	records map[string]*models.ReplyRecord
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[string]*models.ReplyRecord)}
}

func (m *memoryRecords) Get(_ context.Context, p models.Platform, id string) (*models.ReplyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[string(p)+"/"+id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryRecords) Create(_ context.Context, r *models.ReplyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(r.Platform) + "/" + r.PlatformReviewID
	if _, ok := m.records[k]; ok {
		return apperrors.NewDuplicateReplyError(string(r.Platform), r.PlatformReviewID)
	}
	cp := *r
	m.records[k] = &cp
	return nil
}

func (m *memoryRecords) Update(_ context.Context, r *models.ReplyRecord, expected models.LifecycleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(r.Platform) + "/" + r.PlatformReviewID
	current, ok := m.records[k]
	if !ok || current.State != expected {
		return apperrors.NewStaleRecordError(r.ID)
	}
	cp := *r
	m.records[k] = &cp
	return nil
}

// countingProvider tracks concurrent Generate calls.
type countingProvider struct {
	latency time.Duration

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxSeen {
		p.maxSeen = p.active
	}
	p.mu.Unlock()

	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	return &llm.Response{
		Text:  "정성스러운 답변 감사드리며 홍길동님 또 들러주세요 늘 준비하고 기다리겠습니다 소중한 의견 잘 참고하겠습니다",
		Model: "counting",
	}, nil
}

func (p *countingProvider) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSeen
}

func rawBaeminReview(id string) map[string]interface{} {
	return map[string]interface{}{
		"review_id":   id,
		"member_name": "홍길동",
		"rating":      float64(5),
		"contents":    "정말 맛있어요 최고",
		"created_at":  "2024-01-10 12:00:00",
	}
}

func newTestBatch(t *testing.T, crawler *fakeCrawler, provider llm.Provider, cfg config.PipelineConfig) (*Batch, *memoryRecords) {
	log := logger.NewTestLogger(t)
	profile := &models.StoreProfile{
		StoreID:             "store-1",
		StoreName:           "테스트식당",
		AutoApprovePositive: true,
	}
	profile.ApplyDefaults()

	records := newMemoryRecords()
	wf := workflow.New(records, 3, log)

	// No overlay: the rules decide approval on their own in these tests.
	cls := classifier.New(nil, time.Second, log)
	cmp := composer.New(provider, 5*time.Second, 0.7, composer.NewVariation(1), log)
	val := validator.New(log)

	batch := NewBatch(crawler, &fakeProfiles{profile: profile}, cls, cmp, val, wf,
		notify.NopNotifier{}, archive.NopArchiver{}, nil, cfg, log)
	return batch, records
}

// ==========================
// Pipeline Tests
// ==========================

func TestRun_ProcessesAllReviews(t *testing.T) {
	crawler := &fakeCrawler{}
	for i := 0; i < 4; i++ {
		crawler.raws = append(crawler.raws, rawBaeminReview(fmt.Sprintf("r-%d", i)))
	}

	batch, records := newTestBatch(t, crawler, &countingProvider{}, config.PipelineConfig{
		MaxConcurrentReviews: 5,
		FetchLimit:           50,
	})

	summary, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 4, summary.Success)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 4, summary.AutoApproved)

	for i := 0; i < 4; i++ {
		record, err := records.Get(context.Background(), models.PlatformBaemin, fmt.Sprintf("r-%d", i))
		require.NoError(t, err)
		assert.Equal(t, models.StateApproved, record.State)
		assert.Equal(t, "auto", record.ApprovedBy)
	}
}

func TestRun_SkipsReviewsWithExistingReplies(t *testing.T) {
	raw := rawBaeminReview("r-existing")
	raw["reply"] = map[string]interface{}{"contents": "이미 단 답글"}
	crawler := &fakeCrawler{raws: []map[string]interface{}{raw}}

	batch, _ := newTestBatch(t, crawler, &countingProvider{}, config.PipelineConfig{
		MaxConcurrentReviews: 2,
		FetchLimit:           50,
	})

	summary, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Success)
}

func TestRun_SecondRunSkipsTrackedReviews(t *testing.T) {
	crawler := &fakeCrawler{raws: []map[string]interface{}{rawBaeminReview("r-1")}}

	batch, _ := newTestBatch(t, crawler, &countingProvider{}, config.PipelineConfig{
		MaxConcurrentReviews: 2,
		FetchLimit:           50,
	})

	first, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)
	require.NoError(t, err)
	require.Equal(t, 1, first.Success)

	second, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Success)
}

func TestRun_RejectedReplyIsRecomposed(t *testing.T) {
	raw := rawBaeminReview("r-reject")
	raw["rating"] = float64(1)
	raw["contents"] = "배달이 너무 늦었어요"
	crawler := &fakeCrawler{raws: []map[string]interface{}{raw}}

	batch, records := newTestBatch(t, crawler, &countingProvider{}, config.PipelineConfig{
		MaxConcurrentReviews: 2,
		FetchLimit:           50,
	})

	first, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)
	require.NoError(t, err)
	require.Equal(t, 1, first.Success)

	wf := workflow.New(records, 3, logger.NewTestLogger(t))
	record, err := records.Get(context.Background(), models.PlatformBaemin, "r-reject")
	require.NoError(t, err)
	require.Equal(t, models.StatePendingApproval, record.State)
	require.NoError(t, wf.Reject(context.Background(), record, "owner@store", "톤이 맞지 않음"))

	second, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Success, "rejected reply must go back through composition")
	assert.Equal(t, 0, second.Skipped)

	regenerated, err := records.Get(context.Background(), models.PlatformBaemin, "r-reject")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingApproval, regenerated.State)
	assert.Equal(t, 1, regenerated.RetryCount)
	assert.NotEmpty(t, regenerated.GeneratedText)
	assert.Empty(t, regenerated.FailureReason)
}

func TestRun_UnknownStoreAborts(t *testing.T) {
	crawler := &fakeCrawler{raws: []map[string]interface{}{rawBaeminReview("r-1")}}
	batch, _ := newTestBatch(t, crawler, &countingProvider{}, config.PipelineConfig{
		MaxConcurrentReviews: 2,
	})
	batch.profiles = &fakeProfiles{profile: nil}

	_, err := batch.Run(context.Background(), "missing-store", models.PlatformBaemin)

	require.Error(t, err)
	stdErr, ok := err.(*apperrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeUnknownStore, stdErr.Code)
}

// ==========================
// Concurrency Tests
// ==========================

func TestRun_RespectsConcurrencyCap(t *testing.T) {
	crawler := &fakeCrawler{}
	for i := 0; i < 10; i++ {
		crawler.raws = append(crawler.raws, rawBaeminReview(fmt.Sprintf("r-%d", i)))
	}

	provider := &countingProvider{latency: 100 * time.Millisecond}
	batch, _ := newTestBatch(t, crawler, provider, config.PipelineConfig{
		MaxConcurrentReviews: 2,
		FetchLimit:           50,
	})

	start := time.Now()
	summary, err := batch.Run(context.Background(), "store-1", models.PlatformBaemin)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.LessOrEqual(t, provider.MaxConcurrent(), 2)
	// 10 reviews at 100ms each through 2 slots cannot finish faster than
	// five sequential rounds.
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
}

func TestRun_CanceledContextSkipsRemaining(t *testing.T) {
	crawler := &fakeCrawler{}
	for i := 0; i < 6; i++ {
		crawler.raws = append(crawler.raws, rawBaeminReview(fmt.Sprintf("r-%d", i)))
	}

	provider := &countingProvider{latency: 50 * time.Millisecond}
	batch, _ := newTestBatch(t, crawler, provider, config.PipelineConfig{
		MaxConcurrentReviews: 1,
		FetchLimit:           50,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	summary, err := batch.Run(ctx, "store-1", models.PlatformBaemin)

	require.NoError(t, err)
	assert.Equal(t, 6, summary.Total)
	assert.Greater(t, summary.Skipped, 0, "reviews after cancellation must be skipped")
}
