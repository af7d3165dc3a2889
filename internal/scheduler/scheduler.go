// Package scheduler decides when an approved reply may be transmitted.
// Auto-approved replies wait until the next midnight plus one day,
// manually approved ones a day longer; midnights are taken in the
// review's own timezone.
package scheduler

import (
	"time"

	"reviewdesk/internal/models"
)

type Priority string

const (
	PriorityAuto     Priority = "auto"
	PriorityApproval Priority = "requires_approval"
)

// PostableAt computes the earliest permitted transmission time for a
// reply to a review seen at reviewDate.
func PostableAt(reviewDate time.Time, priority Priority) time.Time {
	days := 1
	if priority == PriorityApproval {
		days = 2
	}
	y, m, d := reviewDate.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, reviewDate.Location())
}

// For maps an analysis onto a posting priority.
func For(analysis models.ReviewAnalysis) Priority {
	if analysis.RequiresApproval {
		return PriorityApproval
	}
	return PriorityAuto
}
