package providers

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Weekday codes in the order the settings form lists them.
var Weekdays = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Schedule is a provider's declared operating window.
type Schedule struct {
	Days     []string `json:"days"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Timezone string   `json:"timezone,omitempty"`
}

// Validate checks day codes, HH:MM clocks and the timezone name.
func (s Schedule) Validate() error {
	var invalid []string
	for _, d := range s.Days {
		if weekdayIndex(d) < 0 {
			invalid = append(invalid, d)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDay, strings.Join(invalid, ", "))
	}
	if !clockPattern.MatchString(s.Start) || !clockPattern.MatchString(s.End) {
		return ErrInvalidClock
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("providers: invalid timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}

// ParseDays splits the comma separated column form ("MON,TUE").
func ParseDays(raw string) []string {
	var days []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.ToUpper(strings.TrimSpace(d)); d != "" {
			days = append(days, d)
		}
	}
	return days
}

// IsOperating reports whether now falls inside the schedule. A schedule with no
// days is treated as undeclared and always operating. The window is evaluated
// in the schedule's timezone when set, otherwise in now's location. A window
// whose end is before its start crosses midnight and belongs to the day it
// started on.
func IsOperating(now time.Time, s Schedule) bool {
	if len(s.Days) == 0 {
		return true
	}
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			now = now.In(loc)
		}
	}
	start, okStart := clockMinutes(s.Start)
	end, okEnd := clockMinutes(s.End)
	if !okStart || !okEnd {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	today := codeFor(now.Weekday())
	yesterday := codeFor(now.AddDate(0, 0, -1).Weekday())

	switch {
	case start == end:
		return s.hasDay(today)
	case start < end:
		return s.hasDay(today) && minutes >= start && minutes < end
	default:
		if minutes >= start {
			return s.hasDay(today)
		}
		return minutes < end && s.hasDay(yesterday)
	}
}

func (s Schedule) hasDay(code string) bool {
	for _, d := range s.Days {
		if strings.EqualFold(strings.TrimSpace(d), code) {
			return true
		}
	}
	return false
}

func clockMinutes(v string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func weekdayIndex(code string) int {
	for i, d := range Weekdays {
		if strings.EqualFold(strings.TrimSpace(code), d) {
			return i
		}
	}
	return -1
}

func codeFor(day time.Weekday) string {
	// time.Sunday is 0; Weekdays starts on Monday.
	return Weekdays[(int(day)+6)%7]
}
