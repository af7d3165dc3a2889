// Package validator scores a composed reply against the store's rules
// before it can be auto-approved. Validation never blocks persistence,
// only the auto-send path.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

const (
	weightLength    = 0.2
	weightTone      = 0.3
	weightRelevance = 0.3
	weightSafety    = 0.2

	penaltyPerIssue = 0.1
	penaltyCap      = 0.5

	passThreshold = 0.6

	lengthWarningBand = 20
)

// honorificMarkers are the polite sentence endings a Korean reply must
// carry. A reply with none of them reads as rude.
var honorificMarkers = []string{"습니다", "니다", "세요", "해요", "어요", "에요"}

// bannedWords are hard safety failures regardless of context.
var bannedWords = []string{
	"환불해드릴게요", "보상해드릴게요", "법적", "고소", "소송",
	"바보", "미친", "짜증",
}

var (
	phoneRE = regexp.MustCompile(`0\d{1,2}[- ]?\d{3,4}[- ]?\d{4}`)
	urlRE   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

type Validator struct {
	log logger.Logger
}

func New(log logger.Logger) *Validator {
	return &Validator{log: log.With(map[string]interface{}{
		"component": "validator",
	})}
}

// Validate runs the four checks and folds them into a weighted score.
// A reply passes only with zero issues and a score at or above 0.6;
// warnings lower neither.
func (v *Validator) Validate(draft *models.ReplyDraft, review models.Review, profile models.StoreProfile, analysis models.ReviewAnalysis) *models.ValidationResult {
	result := &models.ValidationResult{}

	result.LengthOK = v.checkLength(draft.CompleteText, profile, result)
	result.ToneOK = v.checkTone(draft.CompleteText, analysis, result)
	result.RelevanceOK = v.checkRelevance(draft.CompleteText, review, profile, result)
	result.SafetyOK = v.checkSafety(draft.CompleteText, result)

	score := 0.0
	if result.LengthOK {
		score += weightLength
	}
	if result.ToneOK {
		score += weightTone
	}
	if result.RelevanceOK {
		score += weightRelevance
	}
	if result.SafetyOK {
		score += weightSafety
	}

	penalty := penaltyPerIssue * float64(len(result.Issues))
	if penalty > penaltyCap {
		penalty = penaltyCap
	}
	score -= penalty
	if score < 0 {
		score = 0
	}

	result.Score = score
	result.IsValid = len(result.Issues) == 0 && score >= passThreshold
	return result
}

// checkLength compares rune count against the store's bounds. Within 20
// characters of a bound it still passes but earns a warning.
func (v *Validator) checkLength(text string, profile models.StoreProfile, result *models.ValidationResult) bool {
	n := utf8.RuneCountInString(text)

	switch {
	case n < profile.MinReplyLength:
		result.Issues = append(result.Issues, fmt.Sprintf("too short: %d chars, minimum %d", n, profile.MinReplyLength))
		result.Suggestions = append(result.Suggestions, "구체적인 감사나 사과를 한 문장 더하세요")
		return false
	case n > profile.MaxReplyLength:
		result.Issues = append(result.Issues, fmt.Sprintf("too long: %d chars, maximum %d", n, profile.MaxReplyLength))
		result.Suggestions = append(result.Suggestions, "핵심 문장만 남기고 줄이세요")
		return false
	case n < profile.MinReplyLength+lengthWarningBand:
		result.Warnings = append(result.Warnings, fmt.Sprintf("near minimum length: %d chars", n))
	case n > profile.MaxReplyLength-lengthWarningBand:
		result.Warnings = append(result.Warnings, fmt.Sprintf("near maximum length: %d chars", n))
	}
	return true
}

// checkTone requires polite endings and looks for sentiment-appropriate
// vocabulary. Missing vocabulary is a warning, missing politeness an
// issue.
func (v *Validator) checkTone(text string, analysis models.ReviewAnalysis, result *models.ValidationResult) bool {
	if !containsAny(text, honorificMarkers) {
		result.Issues = append(result.Issues, "no honorific sentence endings")
		return false
	}

	switch analysis.Sentiment {
	case models.SentimentPositive:
		if !containsAny(text, []string{"감사", "고마"}) {
			result.Warnings = append(result.Warnings, "positive review but no thanks expressed")
		}
	case models.SentimentNegative:
		if !containsAny(text, []string{"죄송", "불편", "사과"}) {
			result.Warnings = append(result.Warnings, "negative review but no apology expressed")
		}
	}
	return true
}

// checkRelevance requires the reply to reference something specific to
// this review: the reviewer, the store or an ordered item.
func (v *Validator) checkRelevance(text string, review models.Review, profile models.StoreProfile, result *models.ValidationResult) bool {
	if review.ReviewerName != "" && strings.Contains(text, review.ReviewerName) {
		return true
	}
	if profile.StoreName != "" && strings.Contains(text, profile.StoreName) {
		return true
	}
	for _, item := range review.OrderedItems {
		if item != "" && strings.Contains(text, item) {
			return true
		}
	}

	result.Issues = append(result.Issues, "reply references neither reviewer, store nor ordered items")
	result.Suggestions = append(result.Suggestions, "고객 이름이나 주문 메뉴를 언급하세요")
	return false
}

// checkSafety rejects banned vocabulary and phone numbers outright;
// URLs and email addresses only warn.
func (v *Validator) checkSafety(text string, result *models.ValidationResult) bool {
	ok := true

	for _, w := range bannedWords {
		if strings.Contains(text, w) {
			result.Issues = append(result.Issues, fmt.Sprintf("banned word: %s", w))
			ok = false
		}
	}
	if phoneRE.MatchString(text) {
		result.Issues = append(result.Issues, "contains a phone number")
		ok = false
	}

	if urlRE.MatchString(text) {
		result.Warnings = append(result.Warnings, "contains a URL")
	}
	if emailRE.MatchString(text) {
		result.Warnings = append(result.Warnings, "contains an email address")
	}
	return ok
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
