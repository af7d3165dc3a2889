// Package classifier assigns sentiment, risk level and an approval
// requirement to a canonical review. Classification is two-stage: a
// deterministic rule pass, then an AI overlay that may only raise caution.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/metrics"
	"reviewdesk/internal/llm"
	"reviewdesk/internal/models"
)

const (
	delayHighHours   = 48
	delayMediumHours = 24
)

type Classifier struct {
	overlay llm.Provider
	timeout time.Duration
	log     logger.Logger
}

func New(overlay llm.Provider, timeout time.Duration, log logger.Logger) *Classifier {
	return &Classifier{
		overlay: overlay,
		timeout: timeout,
		log: log.With(map[string]interface{}{
			"component": "classifier",
		}),
	}
}

// Classify runs both stages. It never fails: any overlay problem degrades
// to requires_approval=true.
func (c *Classifier) Classify(ctx context.Context, review models.Review, profile models.StoreProfile) models.ReviewAnalysis {
	analysis := classifyRules(review, profile)
	analysis.Sentiment, analysis.SentimentScore = deriveSentiment(review)

	// The rule stage is a floor: the overlay can only raise caution, so it
	// is consulted only when the rules left approval off.
	if !analysis.RequiresApproval && c.overlay != nil {
		needed, err := c.askOverlay(ctx, review)
		if err != nil {
			c.log.Warn("approval overlay failed, defaulting to manual approval", map[string]interface{}{
				"platform": string(review.Platform),
				"reviewId": review.PlatformReviewID,
				"error":    err.Error(),
			})
			metrics.LLMCalls.WithLabelValues("overlay", "error").Inc()
			analysis.RequiresApproval = true
			analysis.ApprovalReason = "overlay unavailable"
		} else {
			metrics.LLMCalls.WithLabelValues("overlay", "ok").Inc()
			if needed {
				analysis.RequiresApproval = true
				analysis.ApprovalReason = "flagged by approval overlay"
			}
		}
	}

	return analysis
}

// classifyRules is the deterministic stage. Rules are evaluated in strict
// priority order; an unclassifiable review lands on medium as the
// fail-safe.
func classifyRules(review models.Review, profile models.StoreProfile) models.ReviewAnalysis {
	text := review.ReviewText

	if kw, ok := matchAny(text, highRiskKeywords); ok {
		return models.ReviewAnalysis{
			RiskLevel:        models.RiskHigh,
			RequiresApproval: true,
			ApprovalReason:   fmt.Sprintf("high-risk keyword: %s", kw),
			DelayHours:       delayHighHours,
		}
	}

	if kw, ok := matchAny(text, mediumRiskKeywords); ok {
		return models.ReviewAnalysis{
			RiskLevel:        models.RiskMedium,
			RequiresApproval: mediumNeedsApproval(review, profile),
			ApprovalReason:   fmt.Sprintf("medium-risk keyword: %s", kw),
			DelayHours:       delayMediumHours,
		}
	}

	// A bad rating is medium risk no matter what the text says, including
	// empty text.
	if review.HasRating() && review.Rating <= 2 {
		return models.ReviewAnalysis{
			RiskLevel:        models.RiskMedium,
			RequiresApproval: true,
			ApprovalReason:   fmt.Sprintf("low rating: %d", review.Rating),
			DelayHours:       delayMediumHours,
		}
	}

	if _, ok := matchAny(text, positiveKeywords); ok && (!review.HasRating() || review.Rating >= 3) {
		return models.ReviewAnalysis{
			RiskLevel:  models.RiskLow,
			DelayHours: 0,
		}
	}

	// Unclassifiable: fail safe toward caution.
	return models.ReviewAnalysis{
		RiskLevel:        models.RiskMedium,
		RequiresApproval: mediumNeedsApproval(review, profile),
		ApprovalReason:   "unclassifiable review",
		DelayHours:       delayMediumHours,
	}
}

// mediumNeedsApproval applies the store's medium-risk policy. A rating of
// 2 or below always needs a human regardless of policy.
func mediumNeedsApproval(review models.Review, profile models.StoreProfile) bool {
	if review.HasRating() && review.Rating <= 2 {
		return true
	}
	return profile.ManualApprovalMediumRisk
}

// deriveSentiment combines the rating with a keyword tally, clamped to
// [0,1]. It is independent of risk classification.
func deriveSentiment(review models.Review) (models.Sentiment, float64) {
	score := 0.5

	if review.HasRating() {
		switch {
		case review.Rating >= 4:
			score += 0.3
		case review.Rating <= 2:
			score -= 0.3
		}
	}

	score += 0.1 * float64(countMatches(review.ReviewText, positiveKeywords))
	score -= 0.1 * float64(countMatches(review.ReviewText, negativeKeywords))

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	switch {
	case score >= 0.6:
		return models.SentimentPositive, score
	case score <= 0.4:
		return models.SentimentNegative, score
	default:
		return models.SentimentNeutral, score
	}
}

// askOverlay asks the backend a single yes/no question under a hard
// timeout.
func (c *Classifier) askOverlay(ctx context.Context, review models.Review) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llm.Request{
		SystemPrompt: "당신은 음식점 리뷰 검토 담당자입니다. 사장님의 답글을 게시하기 전에 사람 검토가 필요한지만 판단하세요.",
		UserPrompt: fmt.Sprintf(
			"리뷰 내용: %q\n별점: %d\n\n이 리뷰에 대한 자동 답글을 게시하기 전에 사람의 승인이 필요합니까? YES 또는 NO로만 답하세요.",
			review.ReviewText, review.Rating,
		),
		MaxTokens:   8,
		Temperature: 0,
	}

	resp, err := c.overlay.Generate(ctx, req)
	if err != nil {
		return true, err
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Text))
	return strings.HasPrefix(answer, "YES"), nil
}

func contains(text, keyword string) bool {
	return strings.Contains(text, keyword)
}
