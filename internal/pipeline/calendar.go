package pipeline

import "time"

// TradingDays enumerates the trading days in [from, to] in chronological
// order. Saturdays and Sundays are always excluded; holidays lists further
// non-trading dates keyed by their YYYY-MM-DD form.
func TradingDays(from, to time.Time, holidays map[string]bool) []time.Time {
	from = truncateToDay(from)
	to = truncateToDay(to)

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if holidays[d.Format("2006-01-02")] {
			continue
		}
		days = append(days, d)
	}
	return days
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
