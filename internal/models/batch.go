// internal/models/batch.go
package models

import "time"

// ProcessingResult is the tagged outcome of running one review through the
// pipeline. Expected skip paths are Outcome values; Error is only set when
// Outcome is failed.
type ProcessingResult struct {
	Platform         Platform       `json:"platform"`
	PlatformReviewID string         `json:"platformReviewId"`
	Outcome          OutcomeStatus  `json:"outcome"`
	Reason           string         `json:"reason,omitempty"`
	Error            string         `json:"error,omitempty"`
	State            LifecycleState `json:"state,omitempty"`
	RiskLevel        RiskLevel      `json:"riskLevel,omitempty"`
	RequiresApproval bool           `json:"requiresApproval"`
	AutoApproved     bool           `json:"autoApproved"`
	Duration         time.Duration  `json:"duration"`
}

// BatchSummary aggregates one orchestrator run over a store/platform pair.
type BatchSummary struct {
	StoreID          string             `json:"storeId"`
	Platform         Platform           `json:"platform"`
	Total            int                `json:"total"`
	Success          int                `json:"success"`
	Failed           int                `json:"failed"`
	Skipped          int                `json:"skipped"`
	RequiresApproval int                `json:"requiresApproval"`
	AutoApproved     int                `json:"autoApproved"`
	ProcessingTime   time.Duration      `json:"processingTime"`
	Results          []ProcessingResult `json:"results"`
}

// Add folds a single result into the summary counters.
func (s *BatchSummary) Add(r ProcessingResult) {
	s.Total++
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeSuccess:
		s.Success++
		if r.RequiresApproval {
			s.RequiresApproval++
		}
		if r.AutoApproved {
			s.AutoApproved++
		}
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}
