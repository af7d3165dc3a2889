// Package composer turns a classified review into reply text. Composition
// never fails the pipeline: when the model is unavailable the composer
// falls back to a low-confidence template body.
package composer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/metrics"
	"reviewdesk/internal/llm"
	"reviewdesk/internal/models"
)

const (
	confidenceModel       = 0.9
	confidenceTemplate    = 0.4
	confidenceRegenerated = 0.6

	anonymousReviewer = "고객"
)

// brandNames never belong in an owner's reply. Platform moderation
// rejects replies that name a competing (or even the hosting) platform.
var brandNames = []string{"배달의민족", "배민", "쿠팡이츠", "쿠팡", "요기요", "네이버"}

// quotedTermRE captures substrings a rejection message quotes,
// in ASCII or Korean quote styles.
var quotedTermRE = regexp.MustCompile(`["'“”‘’「」]([^"'“”‘’「」]{1,40})["'“”‘’「」]`)

type Composer struct {
	provider    llm.Provider
	timeout     time.Duration
	temperature float64
	vary        *Variation
	log         logger.Logger
}

func New(provider llm.Provider, timeout time.Duration, temperature float64, vary *Variation, log logger.Logger) *Composer {
	return &Composer{
		provider:    provider,
		timeout:     timeout,
		temperature: temperature,
		vary:        vary,
		log: log.With(map[string]interface{}{
			"component": "composer",
		}),
	}
}

// Compose produces the first draft for a review. It returns a usable
// draft in every case; model failure degrades to a template body with a
// matching confidence drop.
func (c *Composer) Compose(ctx context.Context, review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis) *models.ReplyDraft {
	reviewer := displayName(review.ReviewerName)

	req := llm.Request{
		SystemPrompt: buildSystemPrompt(profile),
		UserPrompt:   buildUserPrompt(review, analysis, reviewer),
		MaxTokens:    profile.MaxReplyLength * 2,
		Temperature:  c.temperature,
	}

	start := time.Now()
	resp, err := c.generate(ctx, req)
	latency := time.Since(start)

	if err != nil {
		c.log.Warn("model composition failed, using template fallback", map[string]interface{}{
			"platform": string(review.Platform),
			"reviewId": review.PlatformReviewID,
			"error":    err.Error(),
		})
		metrics.LLMCalls.WithLabelValues("compose", "error").Inc()
		return c.templateDraft(review, profile, analysis, reviewer, latency)
	}

	metrics.LLMCalls.WithLabelValues("compose", "ok").Inc()
	metrics.LLMLatency.Observe(latency.Seconds())

	body := strings.TrimSpace(resp.Text)
	if body == "" {
		return c.templateDraft(review, profile, analysis, reviewer, latency)
	}

	return &models.ReplyDraft{
		Body:         body,
		CompleteText: c.assemble(body, profile, reviewer),
		Model:        resp.Model,
		Source:       models.SourceModel,
		Latency:      latency,
		Confidence:   confidenceModel,
	}
}

// Recompose produces a fresh draft after a previous reply was rejected,
// by the platform or by a human. Every substring the rejection quoted, every
// platform brand name and (when the rejection concerns the nickname)
// the reviewer's name are kept out of the new text.
func (c *Composer) Recompose(ctx context.Context, review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis, previous *models.ReplyRecord) *models.ReplyDraft {
	avoid := extractRejectedTerms(previous.FailureReason)
	avoid = append(avoid, brandNames...)

	reviewer := displayName(review.ReviewerName)
	if nicknameFlagged(previous.FailureReason, review.ReviewerName) {
		// Templates append the honorific, so the bare noun renders as
		// the required 고객님.
		reviewer = anonymousReviewer
		if review.ReviewerName != "" {
			avoid = append(avoid, review.ReviewerName)
		}
	}

	req := llm.Request{
		SystemPrompt: buildSystemPrompt(profile),
		UserPrompt:   buildRegenerationPrompt(review, analysis, reviewer, previous, avoid),
		MaxTokens:    profile.MaxReplyLength * 2,
		Temperature:  c.temperature,
	}

	start := time.Now()
	resp, err := c.generate(ctx, req)
	latency := time.Since(start)

	var body, model string
	source := models.SourceRegenerated
	if err != nil {
		c.log.Warn("model regeneration failed, using template fallback", map[string]interface{}{
			"platform": string(review.Platform),
			"reviewId": review.PlatformReviewID,
			"error":    err.Error(),
		})
		metrics.LLMCalls.WithLabelValues("recompose", "error").Inc()
		body = c.fallbackBody(analysis)
	} else {
		metrics.LLMCalls.WithLabelValues("recompose", "ok").Inc()
		metrics.LLMLatency.Observe(latency.Seconds())
		body = strings.TrimSpace(resp.Text)
		model = resp.Model
		if body == "" {
			body = c.fallbackBody(analysis)
		}
	}

	metrics.RegenerationAttempts.WithLabelValues(string(review.Platform)).Inc()

	// The model is instructed to avoid these terms but instructions are
	// not guarantees. Scrub before assembly.
	body = scrub(body, avoid)
	greeting := scrub(profile.Substitute(profile.GreetingTemplate, reviewer), avoid)
	closing := scrub(profile.Substitute(profile.ClosingTemplate, reviewer), avoid)

	return &models.ReplyDraft{
		Body:         body,
		CompleteText: Cleanup(joinParts(greeting, body, closing)),
		Model:        model,
		Source:       source,
		Latency:      latency,
		Confidence:   confidenceRegenerated,
	}
}

func (c *Composer) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.Generate(ctx, req)
}

func (c *Composer) templateDraft(review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis, reviewer string, latency time.Duration) *models.ReplyDraft {
	body := c.fallbackBody(analysis)
	return &models.ReplyDraft{
		Body:         body,
		CompleteText: c.assemble(body, profile, reviewer),
		Source:       models.SourceTemplate,
		Latency:      latency,
		Confidence:   confidenceTemplate,
	}
}

func (c *Composer) fallbackBody(analysis models.ReviewAnalysis) string {
	switch analysis.Sentiment {
	case models.SentimentPositive:
		return c.vary.Pick(fallbackPositiveBodies)
	case models.SentimentNegative:
		return c.vary.Pick(fallbackNegativeBodies)
	default:
		return c.vary.Pick(fallbackNeutralBodies)
	}
}

// assemble substitutes the templates and joins greeting, body and
// closing with single spaces, then runs cleanup.
func (c *Composer) assemble(body string, profile models.StoreProfile, reviewer string) string {
	greeting := profile.Substitute(profile.GreetingTemplate, reviewer)
	closing := profile.Substitute(profile.ClosingTemplate, reviewer)
	return Cleanup(joinParts(greeting, body, closing))
}

func joinParts(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func displayName(reviewerName string) string {
	if strings.TrimSpace(reviewerName) == "" {
		return anonymousReviewer
	}
	return reviewerName
}

// extractRejectedTerms pulls the quoted substrings out of a platform
// rejection message.
func extractRejectedTerms(failureReason string) []string {
	var terms []string
	for _, m := range quotedTermRE.FindAllStringSubmatch(failureReason, -1) {
		if term := strings.TrimSpace(m[1]); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// nicknameFlagged reports whether the rejection concerns the reviewer's
// nickname, either by naming it or by complaining about personal names.
func nicknameFlagged(failureReason, reviewerName string) bool {
	if reviewerName != "" && strings.Contains(failureReason, reviewerName) {
		return true
	}
	for _, marker := range []string{"닉네임", "실명", "개인정보", "이름"} {
		if strings.Contains(failureReason, marker) {
			return true
		}
	}
	return false
}

func scrub(text string, terms []string) string {
	for _, term := range terms {
		text = strings.ReplaceAll(text, term, "")
	}
	return text
}

func buildRegenerationPrompt(review models.Review, analysis models.ReviewAnalysis, reviewer string, previous *models.ReplyRecord, avoid []string) string {
	var parts []string
	parts = append(parts, buildUserPrompt(review, analysis, reviewer))
	parts = append(parts, fmt.Sprintf("\n이전 답글이 거부되었습니다.\n거부 사유: %s", previous.FailureReason))
	if previous.GeneratedText != "" {
		parts = append(parts, fmt.Sprintf("거부된 답글: %q", previous.GeneratedText))
	}
	if len(avoid) > 0 {
		parts = append(parts, fmt.Sprintf("다음 표현을 절대 포함하지 말고 완전히 새로 작성하세요: %s", strings.Join(avoid, ", ")))
	}
	return strings.Join(parts, "\n")
}
