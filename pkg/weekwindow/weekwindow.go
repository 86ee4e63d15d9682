// Package weekwindow computes the weekly accounting window used by both the
// live leaderboard and the frozen snapshots.
//
// A week runs from Wednesday 09:00 KST to the next Wednesday 09:00 KST. Both
// bounds are exposed as UTC timestamps in canonical "2006-01-02T15:04:05Z"
// form so they compare lexicographically with the stored match timestamps.
package weekwindow

import "time"

// KST is the anchor timezone (UTC+9). A fixed offset, not a tzdata zone, so
// the calculation never depends on the host zone database.
var KST = time.FixedZone("KST", 9*60*60)

const (
	anchorWeekday = time.Wednesday
	anchorHour    = 9
)

// Window is one accounting week, [Start, End), in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartZ returns the window start as a canonical UTC Z string.
func (w Window) StartZ() string {
	return FormatZ(w.Start)
}

// EndZ returns the window end as a canonical UTC Z string.
func (w Window) EndZ() string {
	return FormatZ(w.End)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// FormatZ renders a time as "2006-01-02T15:04:05Z" (UTC, seconds truncated).
func FormatZ(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// ParseZ parses a canonical UTC Z string.
func ParseZ(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z", s)
}

// Current returns the accounting week containing now.
func Current(now time.Time) Window {
	nowKST := now.In(KST)

	anchor := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), anchorHour, 0, 0, 0, KST)
	daysBack := (int(nowKST.Weekday()) - int(anchorWeekday) + 7) % 7
	start := anchor.AddDate(0, 0, -daysBack)

	// Anchor weekday but before the anchor hour: still last week.
	if nowKST.Before(start) {
		start = start.AddDate(0, 0, -7)
	}

	end := start.AddDate(0, 0, 7)

	return Window{Start: start.UTC(), End: end.UTC()}
}

// Previous returns the accounting week immediately before Current(now).
// Its start is the retention cutoff: matches older than it are purged.
func Previous(now time.Time) Window {
	w := Current(now)
	return Window{
		Start: w.Start.AddDate(0, 0, -7),
		End:   w.End.AddDate(0, 0, -7),
	}
}
