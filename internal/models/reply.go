// internal/models/reply.go
package models

import "time"

// ReplyDraft is a composed reply before validation. Consumed immediately
// by the validator; never persisted as-is.
type ReplyDraft struct {
	Body         string        `json:"body"`
	CompleteText string        `json:"completeText"` // greeting + body + closing after cleanup
	Model        string        `json:"model"`
	Source       DraftSource   `json:"source"`
	Latency      time.Duration `json:"latency"`
	Confidence   float64       `json:"confidence"` // [0,1]
}

// ValidationResult scores a composed reply against the store's rules.
// A failed validation blocks auto-send, not persistence.
type ValidationResult struct {
	IsValid     bool     `json:"isValid"`
	Score       float64  `json:"score"` // [0,1]
	Issues      []string `json:"issues,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	LengthOK    bool `json:"lengthCheck"`
	ToneOK      bool `json:"toneCheck"`
	RelevanceOK bool `json:"relevanceCheck"`
	SafetyOK    bool `json:"safetyCheck"`
}

// ReplyRecord is the persisted reply lifecycle record. Exactly one exists
// per review identity, enforced by a unique key on
// (platform, platform_review_id). Records are never deleted, only
// transitioned by the approval workflow.
type ReplyRecord struct {
	ID               string         `json:"id"`
	Platform         Platform       `json:"platform"`
	PlatformReviewID string         `json:"platformReviewId"`
	StoreID          string         `json:"storeId"`
	GeneratedText    string         `json:"generatedText"`        // latest composed draft
	ReplyText        string         `json:"replyText"`            // canonical text, set on approval
	State            LifecycleState `json:"state"`
	RequiresApproval bool           `json:"requiresApproval"`
	ScheduledPostAt  time.Time      `json:"scheduledPostAt"`      // earliest permitted transmission
	FailureReason    string         `json:"failureReason,omitempty"`
	RetryCount       int            `json:"retryCount"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time     `json:"approvedAt,omitempty"`
	RejectedBy       string         `json:"rejectedBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// HasReply reports whether an unrejected reply already exists. Such
// records are skipped, not recomposed.
func (r *ReplyRecord) HasReply() bool {
	return r.GeneratedText != "" && r.FailureReason == ""
}

// NeedsRegeneration reports whether a rejection left the record waiting
// for a fresh draft. Platform rejections park the record FAILED with the
// rejected text still attached; human rejections send it back to DRAFT
// with the text cleared. Both carry the rejection reason.
func (r *ReplyRecord) NeedsRegeneration() bool {
	return (r.State == StateFailed || r.State == StateDraft) && r.FailureReason != ""
}
