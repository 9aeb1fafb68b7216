// internal/domain/elapsed/breakdown.go
package elapsed

import (
	"fmt"
	"time"
)

// DefaultEpoch is the start date used when nothing else is configured or stored.
const DefaultEpoch = "2025-01-25T20:30:00+03:00"

// Breakdown is the calendar decomposition of the time elapsed since an epoch.
// Every field is the remainder left after the next larger unit was extracted.
type Breakdown struct {
	Years   int `json:"years"`
	Months  int `json:"months"`
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// IsZero reports whether no time has elapsed.
func (b Breakdown) IsZero() bool {
	return b == Breakdown{}
}

// String renders the breakdown as "1y 2mo 3d 4h 5m 6s".
func (b Breakdown) String() string {
	return fmt.Sprintf("%dy %dmo %dd %dh %dm %ds", b.Years, b.Months, b.Days, b.Hours, b.Minutes, b.Seconds)
}

// Widget renders the compact summary: years when at least one year has passed,
// months otherwise, followed by hours and minutes.
func (b Breakdown) Widget() string {
	if b.Years > 0 {
		return fmt.Sprintf("%d years, %d hours, %d minutes", b.Years, b.Hours, b.Minutes)
	}
	return fmt.Sprintf("%d months, %d hours, %d minutes", b.Months, b.Hours, b.Minutes)
}

// ParseEpoch parses an RFC3339 timestamp. The offset in the string is kept as
// the epoch's location.
func ParseEpoch(value string) (time.Time, error) {
	epoch, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q: %w", value, err)
	}
	return epoch, nil
}

// Decompose computes the elapsed time between epoch and now by subtracting
// calendar fields and borrowing from the next larger unit. Day borrows use the
// real length of the month preceding now's month. A now at or before epoch
// yields the zero Breakdown.
func Decompose(epoch, now time.Time) Breakdown {
	if !now.After(epoch) {
		return Breakdown{}
	}
	now = now.In(epoch.Location())

	years := now.Year() - epoch.Year()
	months := int(now.Month()) - int(epoch.Month())
	days := now.Day() - epoch.Day()
	hours := now.Hour() - epoch.Hour()
	minutes := now.Minute() - epoch.Minute()
	seconds := now.Second() - epoch.Second()

	if seconds < 0 {
		seconds += 60
		minutes--
	}
	if minutes < 0 {
		minutes += 60
		hours--
	}
	if hours < 0 {
		hours += 24
		days--
	}
	// An epoch on the 29th-31st can need a second borrow when the preceding
	// month is February.
	for back := 0; days < 0; back++ {
		days += daysInPrecedingMonth(now.Year(), now.Month()-time.Month(back), epoch.Location())
		months--
	}
	for months < 0 {
		months += 12
		years--
	}

	return Breakdown{
		Years:   clamp(years),
		Months:  clamp(months),
		Days:    clamp(days),
		Hours:   clamp(hours),
		Minutes: clamp(minutes),
		Seconds: clamp(seconds),
	}
}

// HourBucket returns floor((now - epoch) / 1h). It is negative when now
// precedes epoch.
func HourBucket(epoch, now time.Time) int64 {
	d := now.Sub(epoch)
	bucket := int64(d / time.Hour)
	if d < 0 && d%time.Hour != 0 {
		bucket--
	}
	return bucket
}

// Day zero of a month normalizes to the last day of the previous month.
func daysInPrecedingMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month, 0, 0, 0, 0, 0, loc).Day()
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
