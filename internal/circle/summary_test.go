package circle

import (
	"slices"
	"testing"

	"github.com/rongwang/savings-circles/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	history := []models.Contribution{
		{UserID: "bob", Amount: 1500, Period: "2026-03"},
		{UserID: "admin", Amount: 1500, Period: "2026-03"},
		{UserID: "bob", Amount: 1000, Period: "2026-02"},
	}

	tests := []struct {
		name     string
		history  []models.Contribution
		period   string
		expected Summary
	}{
		{
			name:     "empty history",
			history:  nil,
			period:   "2026-03",
			expected: Summary{},
		},
		{
			name:     "current period",
			history:  history,
			period:   "2026-03",
			expected: Summary{TotalSaved: 4000, PeriodTotal: 3000, Contributors: 2, Entries: 3},
		},
		{
			name:     "period without entries",
			history:  history,
			period:   "2026-04",
			expected: Summary{TotalSaved: 4000, PeriodTotal: 0, Contributors: 2, Entries: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Summarize(slices.Values(tt.history), tt.period))
		})
	}
}

func TestPeriodOf(t *testing.T) {
	assert.Equal(t, "2026-03", PeriodOf(testNow))

	start, err := PeriodStart("2026-03")
	assert.NoError(t, err)
	assert.Equal(t, "2026-03", PeriodOf(start))
	assert.Equal(t, 1, start.Day())
}
