// Package orgtime derives an organization's wall-clock view of an instant.
// All schedule decisions are made in the organization's IANA timezone,
// never in the host's local zone.
package orgtime

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Location loads an IANA timezone. An empty name is rejected rather than
// silently falling back to UTC or the host zone.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, fmt.Errorf("timezone is required")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Moment is an instant viewed from an organization's timezone.
type Moment struct {
	Local time.Time
}

// At converts now into loc.
func At(now time.Time, loc *time.Location) Moment {
	return Moment{Local: now.In(loc)}
}

// Date is the org-local calendar date, "YYYY-MM-DD".
func (m Moment) Date() string { return m.Local.Format(DateLayout) }

// Weekday is the org-local weekday, 0=Sunday..6=Saturday.
func (m Moment) Weekday() int { return int(m.Local.Weekday()) }

// TimeOfDay is the org-local "HH:MM" truncation of the instant.
func (m Moment) TimeOfDay() string { return m.Local.Format(TimeOfDayLayout) }

// NextMidnight is the first instant of the org-local day after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// SlotInstant returns the instant at which a "HH:MM" item on the given
// org-local date fires.
func SlotInstant(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeOfDayLayout, date+" "+timeOfDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot %s %s: %w", date, timeOfDay, err)
	}
	return t, nil
}
