// internal/models/enums.go
package models

import "fmt"

// Platform identifies the review source. Free-form platform strings from
// crawler payloads are converted through ParsePlatform at the boundary.
type Platform string

const (
	PlatformBaemin      Platform = "baemin"
	PlatformYogiyo      Platform = "yogiyo"
	PlatformCoupangEats Platform = "coupangeats"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformBaemin, PlatformYogiyo, PlatformCoupangEats:
		return true
	}
	return false
}

// AllowsAutoApproval reports whether the platform permits posting a reply
// that was never seen by a human. CoupangEats requires owner confirmation
// for every reply, so records there never start APPROVED.
func (p Platform) AllowsAutoApproval() bool {
	return p != PlatformCoupangEats
}

// ParsePlatform converts a raw platform string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Sentiment is the coarse emotional classification of a review.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// RiskLevel is the coarse sensitivity classification of a review.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// LifecycleState is the reply lifecycle state machine position.
type LifecycleState string

const (
	StateDraft           LifecycleState = "DRAFT"
	StatePendingApproval LifecycleState = "PENDING_APPROVAL"
	StateApproved        LifecycleState = "APPROVED"
	StateSent            LifecycleState = "SENT"
	StateFailed          LifecycleState = "FAILED"
)

func (s LifecycleState) Valid() bool {
	switch s {
	case StateDraft, StatePendingApproval, StateApproved, StateSent, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
// FAILED is not terminal: the regeneration loop may revive the record
// until retries are exhausted.
func (s LifecycleState) Terminal() bool {
	return s == StateSent
}

// ParseLifecycleState converts a stored state string into a LifecycleState.
func ParseLifecycleState(s string) (LifecycleState, error) {
	st := LifecycleState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown lifecycle state %q", s)
	}
	return st, nil
}

// OperationType describes how the store serves customers. It drives
// forbidden phrasing in composed replies (a delivery-only store must never
// invite the reviewer to visit).
type OperationType string

const (
	OperationDeliveryOnly OperationType = "delivery_only"
	OperationDineInOnly   OperationType = "dine_in_only"
	OperationTakeoutOnly  OperationType = "takeout_only"
	OperationBoth         OperationType = "both"
)

func (o OperationType) Valid() bool {
	switch o {
	case OperationDeliveryOnly, OperationDineInOnly, OperationTakeoutOnly, OperationBoth:
		return true
	}
	return false
}

// Tone is the configured voice of the store's replies.
type Tone string

const (
	ToneFriendly Tone = "friendly"
	ToneFormal   Tone = "formal"
	ToneCasual   Tone = "casual"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneFriendly, ToneFormal, ToneCasual:
		return true
	}
	return false
}

// DraftSource records how a reply draft was produced. Template fallbacks
// must stay distinguishable from model output.
type DraftSource string

const (
	SourceModel       DraftSource = "model"
	SourceTemplate    DraftSource = "template"
	SourceRegenerated DraftSource = "regenerated"
)

// OutcomeStatus tags the per-review pipeline result. Expected skip paths
// are values here, not errors.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)
