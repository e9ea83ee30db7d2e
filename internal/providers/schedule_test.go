package providers

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return ts
}

func TestIsOperating(t *testing.T) {
	weekdays := Schedule{Days: []string{"MON", "TUE", "WED", "THU", "FRI"}, Start: "08:00", End: "17:00"}
	overnight := Schedule{Days: []string{"FRI"}, Start: "22:00", End: "06:00"}

	tests := []struct {
		name     string
		now      string
		schedule Schedule
		want     bool
	}{
		{"no declared days", "2026-10-18T03:00:00Z", Schedule{}, true},
		{"inside weekday window", "2026-10-14T09:30:00Z", weekdays, true},
		{"start is inclusive", "2026-10-14T08:00:00Z", weekdays, true},
		{"end is exclusive", "2026-10-14T17:00:00Z", weekdays, false},
		{"weekend", "2026-10-17T10:00:00Z", weekdays, false},
		{"overnight evening", "2026-10-16T23:00:00Z", overnight, true},
		{"overnight after midnight belongs to friday", "2026-10-17T05:59:00Z", overnight, true},
		{"overnight after end", "2026-10-17T06:00:00Z", overnight, false},
		{"overnight wrong day", "2026-10-15T23:00:00Z", overnight, false},
		{"lowercase day codes", "2026-10-14T09:30:00Z", Schedule{Days: []string{"wed"}, Start: "08:00", End: "17:00"}, true},
		{"equal start and end is all day", "2026-10-14T02:00:00Z", Schedule{Days: []string{"WED"}, Start: "00:00", End: "00:00"}, true},
		{"malformed clock", "2026-10-14T09:30:00Z", Schedule{Days: []string{"WED"}, Start: "8am", End: "17:00"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOperating(mustTime(t, tt.now), tt.schedule); got != tt.want {
				t.Fatalf("IsOperating(%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestIsOperatingUsesScheduleTimezone(t *testing.T) {
	s := Schedule{Days: []string{"WED"}, Start: "08:00", End: "17:00", Timezone: "America/Detroit"}
	// 13:00Z is 09:00 in Detroit during daylight time.
	if !IsOperating(mustTime(t, "2026-10-14T13:00:00Z"), s) {
		t.Fatal("expected provider to be operating at 09:00 local")
	}
	// 22:00Z is 18:00 local, after close.
	if IsOperating(mustTime(t, "2026-10-14T22:00:00Z"), s) {
		t.Fatal("expected provider to be closed at 18:00 local")
	}
}

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{Days: []string{"MON", "SAT"}, Start: "08:00", End: "17:30"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid schedule, got %v", err)
	}
	bad := Schedule{Days: []string{"MON", "FUNDAY"}, Start: "08:00", End: "17:00"}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	badClock := Schedule{Days: []string{"MON"}, Start: "8:00", End: "24:00"}
	if err := badClock.Validate(); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
	badTZ := Schedule{Days: []string{"MON"}, Start: "08:00", End: "17:00", Timezone: "Mars/Olympus"}
	if err := badTZ.Validate(); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestSettingsValidate(t *testing.T) {
	ok := Settings{Schedule: Schedule{Days: []string{"MON"}, Start: "08:00", End: "17:00"}, ServiceRadiusMiles: 25}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := (Settings{ServiceRadiusMiles: 25}).Validate(); !errors.Is(err, ErrScheduleRequired) {
		t.Fatalf("expected ErrScheduleRequired, got %v", err)
	}
	tooFar := ok
	tooFar.ServiceRadiusMiles = 201
	if err := tooFar.Validate(); !errors.Is(err, ErrInvalidRadius) {
		t.Fatalf("expected ErrInvalidRadius, got %v", err)
	}
}

func TestParseDays(t *testing.T) {
	got := ParseDays(" mon, TUE,,sun ")
	want := []string{"MON", "TUE", "SUN"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
