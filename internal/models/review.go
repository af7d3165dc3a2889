// internal/models/review.go
package models

import "time"

// Review is the canonical, platform-agnostic review record. It is produced
// by a platform adapter and immutable for the rest of a pipeline run.
// Identity is (Platform, PlatformReviewID).
type Review struct {
	Platform         Platform  `json:"platform"`
	PlatformReviewID string    `json:"platformReviewId"`
	PlatformStoreID  string    `json:"platformStoreId"`
	ReviewerName     string    `json:"reviewerName"`
	Rating           int       `json:"rating"` // 1-5, 0 means the platform reported no rating
	ReviewText       string    `json:"reviewText"`
	ReviewDate       time.Time `json:"reviewDate"`
	OrderedItems     []string  `json:"orderedItems"`

	// State carried over from a previous pipeline run, if any.
	ExistingReplyText     string `json:"existingReplyText,omitempty"`
	ExistingFailureReason string `json:"existingFailureReason,omitempty"`
}

// HasRating reports whether the platform supplied a rating at all.
func (r Review) HasRating() bool {
	return r.Rating >= 1 && r.Rating <= 5
}

// ReviewAnalysis is the risk classification of a single review for one
// pipeline run. It is never persisted on its own; it informs the
// ReplyRecord it produces.
type ReviewAnalysis struct {
	Sentiment        Sentiment `json:"sentiment"`
	SentimentScore   float64   `json:"sentimentScore"` // clamped to [0,1]
	RiskLevel        RiskLevel `json:"riskLevel"`
	RequiresApproval bool      `json:"requiresApproval"`
	ApprovalReason   string    `json:"approvalReason,omitempty"`
	DelayHours       int       `json:"delayHours"`
}
