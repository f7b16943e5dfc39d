package circle

import (
	"iter"

	"github.com/rongwang/savings-circles/internal/models"
)

// Summary aggregates a contribution history.
type Summary struct {
	TotalSaved   int64 `json:"total_saved"`
	PeriodTotal  int64 `json:"period_total"`
	Contributors int   `json:"contributors"`
	Entries      int   `json:"entries"`
}

// Summarize reduces a history to its totals. PeriodTotal only counts entries
// booked in period.
func Summarize(history iter.Seq[models.Contribution], period string) Summary {
	var s Summary
	seen := map[string]struct{}{}
	for c := range history {
		s.Entries++
		s.TotalSaved += c.Amount
		if c.Period == period {
			s.PeriodTotal += c.Amount
		}
		seen[c.UserID] = struct{}{}
	}
	s.Contributors = len(seen)
	return s
}
