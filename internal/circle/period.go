package circle

import "time"

const periodLayout = "2006-01"

// PeriodOf returns the billing period key (UTC calendar month) for t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// PeriodStart parses a period key back to the first instant of that month.
func PeriodStart(period string) (time.Time, error) {
	return time.Parse(periodLayout, period)
}
