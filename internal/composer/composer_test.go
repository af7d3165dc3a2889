// internal/composer/composer_test.go
package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/llm"
	"reviewdesk/internal/models"
)

func testProfile() models.StoreProfile {
	p := models.StoreProfile{
		StoreID:   "store-1",
		StoreName: "테스트식당",
	}
	p.ApplyDefaults()
	return p
}

func testReview() models.Review {
	return models.Review{
		Platform:         models.PlatformBaemin,
		PlatformReviewID: "r-1",
		ReviewerName:     "홍길동",
		Rating:           5,
		ReviewText:       "정말 맛있어요",
		ReviewDate:       time.Now(),
		OrderedItems:     []string{"김치찌개"},
	}
}

func newComposer(t *testing.T, provider llm.Provider) *Composer {
	return New(provider, time.Second, 0.7, NewVariation(42), logger.NewTestLogger(t))
}

// ==========================
// Compose Tests
// ==========================

func TestCompose_AssemblesGreetingBodyClosing(t *testing.T) {
	profile := models.StoreProfile{
		StoreID:          "store-1",
		StoreName:        "카페",
		GreetingTemplate: "안녕하세요 {store_name}",
		ClosingTemplate:  "감사합니다",
	}
	profile.ApplyDefaults()

	stub := &llm.StubProvider{Response: "B"}
	c := newComposer(t, stub)

	draft := c.Compose(context.Background(), testReview(), profile, models.ReviewAnalysis{Sentiment: models.SentimentPositive})

	assert.Equal(t, "안녕하세요 카페 B 감사합니다", draft.CompleteText)
	assert.Equal(t, models.SourceModel, draft.Source)
	assert.Equal(t, 0.9, draft.Confidence)
}

func TestCompose_SubstitutesReviewerName(t *testing.T) {
	stub := &llm.StubProvider{Response: "방문 감사드립니다."}
	c := newComposer(t, stub)

	draft := c.Compose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{Sentiment: models.SentimentPositive})

	assert.Contains(t, draft.CompleteText, "홍길동님")
	assert.Contains(t, draft.CompleteText, "테스트식당")
}

func TestCompose_FallsBackToTemplateOnError(t *testing.T) {
	stub := &llm.StubProvider{Err: errors.New("backend down")}
	c := newComposer(t, stub)

	draft := c.Compose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{Sentiment: models.SentimentPositive})

	assert.Equal(t, models.SourceTemplate, draft.Source)
	assert.Equal(t, 0.4, draft.Confidence)
	assert.NotEmpty(t, draft.Body)
	assert.Contains(t, draft.CompleteText, draft.Body)
}

func TestCompose_FallsBackOnEmptyResponse(t *testing.T) {
	stub := &llm.StubProvider{Response: "   "}
	c := newComposer(t, stub)

	draft := c.Compose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{Sentiment: models.SentimentNegative})

	assert.Equal(t, models.SourceTemplate, draft.Source)
	assert.NotEmpty(t, draft.Body)
}

func TestCompose_AnonymousReviewerGetsGenericName(t *testing.T) {
	stub := &llm.StubProvider{Response: "감사합니다."}
	c := newComposer(t, stub)

	review := testReview()
	review.ReviewerName = ""
	draft := c.Compose(context.Background(), review, testProfile(), models.ReviewAnalysis{})

	assert.Contains(t, draft.CompleteText, "고객님")
}

// ==========================
// Recompose Tests
// ==========================

func TestRecompose_StripsRejectedSubstrings(t *testing.T) {
	stub := &llm.StubProvider{Response: "할인 이벤트 안내와 함께 감사 인사를 드립니다."}
	c := newComposer(t, stub)

	previous := &models.ReplyRecord{
		State:         models.StateFailed,
		GeneratedText: "할인 이벤트 참여하세요",
		FailureReason: `금지된 표현 "할인 이벤트" 포함`,
	}

	draft := c.Recompose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{}, previous)

	assert.NotContains(t, draft.CompleteText, "할인 이벤트")
	assert.Equal(t, models.SourceRegenerated, draft.Source)
	assert.Equal(t, 0.6, draft.Confidence)
}

func TestRecompose_StripsBrandNames(t *testing.T) {
	stub := &llm.StubProvider{Response: "배민에서 주문해 주셔서 감사합니다."}
	c := newComposer(t, stub)

	previous := &models.ReplyRecord{
		State:         models.StateFailed,
		GeneratedText: "이전 답글",
		FailureReason: "플랫폼 언급 금지",
	}

	draft := c.Recompose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{}, previous)

	assert.NotContains(t, draft.CompleteText, "배민")
	assert.NotContains(t, draft.CompleteText, "배달의민족")
}

func TestRecompose_SubstitutesFlaggedNickname(t *testing.T) {
	stub := &llm.StubProvider{Response: "다시 한번 감사드립니다."}
	c := newComposer(t, stub)

	previous := &models.ReplyRecord{
		State:         models.StateFailed,
		GeneratedText: "홍길동님 감사합니다",
		FailureReason: "닉네임 노출 불가: 홍길동",
	}

	draft := c.Recompose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{}, previous)

	assert.NotContains(t, draft.CompleteText, "홍길동")
	assert.Contains(t, draft.CompleteText, "고객님")
}

func TestRecompose_FallsBackOnError(t *testing.T) {
	stub := &llm.StubProvider{Err: errors.New("backend down")}
	c := newComposer(t, stub)

	previous := &models.ReplyRecord{
		State:         models.StateFailed,
		GeneratedText: "이전 답글",
		FailureReason: "사유 없음",
	}

	draft := c.Recompose(context.Background(), testReview(), testProfile(), models.ReviewAnalysis{Sentiment: models.SentimentNegative}, previous)

	assert.Equal(t, models.SourceRegenerated, draft.Source)
	assert.NotEmpty(t, draft.Body)
	assert.Equal(t, 0.6, draft.Confidence)
}

// ==========================
// Helper Tests
// ==========================

func TestExtractRejectedTerms(t *testing.T) {
	tests := []struct {
		name     string
		reason   string
		expected []string
	}{
		{"double quotes", `금지어 "할인" 포함`, []string{"할인"}},
		{"korean quotes", "표현 “무료 제공” 불가", []string{"무료 제공"}},
		{"multiple terms", `"첫번째" 그리고 "두번째"`, []string{"첫번째", "두번째"}},
		{"no quotes", "부적절한 내용", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRejectedTerms(tt.reason))
		})
	}
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"runaway exclamation", "감사합니다!!!!!", "감사합니다!!"},
		{"runaway ellipsis", "네......", "네..."},
		{"extra spaces", "감사  합니다", "감사 합니다"},
		{"blank lines", "첫줄\n\n\n\n둘째줄", "첫줄\n\n둘째줄"},
		{"repeated emoji", "감사합니다😊😊😊😊", "감사합니다😊😊"},
		{"surrounding whitespace", "  감사합니다  ", "감사합니다"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Cleanup(tt.input))
		})
	}
}

func TestVariation_Deterministic(t *testing.T) {
	a := NewVariation(7)
	b := NewVariation(7)

	options := []string{"하나", "둘", "셋"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Pick(options), b.Pick(options))
	}
}
