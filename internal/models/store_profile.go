// internal/models/store_profile.go
package models

import "strings"

// StoreProfile is the read-only per-store reply configuration. Templates
// may contain {store_name}, {reviewer_name} and {business_type}
// placeholders. Unknown or absent fields resolve to the documented
// defaults via ApplyDefaults.
type StoreProfile struct {
	StoreID                  string        `json:"storeId"`
	StoreName                string        `json:"storeName"`
	BusinessType             string        `json:"businessType"`
	Tone                     Tone          `json:"tone"`
	MinReplyLength           int           `json:"minReplyLength"`
	MaxReplyLength           int           `json:"maxReplyLength"`
	GreetingTemplate         string        `json:"greetingTemplate"`
	ClosingTemplate          string        `json:"closingTemplate"`
	SEOKeywords              []string      `json:"seoKeywords,omitempty"`
	OperationType            OperationType `json:"operationType"`
	AutoApprovePositive      bool          `json:"autoApprovePositive"`
	ManualApprovalMediumRisk bool          `json:"manualApprovalMediumRisk"`
}

const (
	defaultMinReplyLength = 50
	defaultMaxReplyLength = 200
)

// ApplyDefaults fills absent fields with the documented defaults:
// tone=friendly, min/max length=50/200, operation_type=both.
func (p *StoreProfile) ApplyDefaults() {
	if !p.Tone.Valid() {
		p.Tone = ToneFriendly
	}
	if p.MinReplyLength <= 0 {
		p.MinReplyLength = defaultMinReplyLength
	}
	if p.MaxReplyLength <= 0 {
		p.MaxReplyLength = defaultMaxReplyLength
	}
	if p.MaxReplyLength < p.MinReplyLength {
		p.MaxReplyLength = p.MinReplyLength
	}
	if !p.OperationType.Valid() {
		p.OperationType = OperationBoth
	}
	if p.GreetingTemplate == "" {
		p.GreetingTemplate = "안녕하세요 {reviewer_name}님, {store_name}입니다."
	}
	if p.ClosingTemplate == "" {
		p.ClosingTemplate = "소중한 리뷰 감사합니다."
	}
}

// Substitute expands template placeholders for this store and reviewer.
func (p *StoreProfile) Substitute(template, reviewerName string) string {
	r := strings.NewReplacer(
		"{store_name}", p.StoreName,
		"{reviewer_name}", reviewerName,
		"{business_type}", p.BusinessType,
	)
	return r.Replace(template)
}
