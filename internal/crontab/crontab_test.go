package crontab

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeShorthand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "time hms", raw: "17:00:00", want: "0 0 17 * * *"},
		{name: "time hm defaults seconds", raw: "8:30", want: "0 30 8 * * *"},
		{name: "time lists", raw: "8,20:0,30", want: "0 0,30 8,20 * * *"},
		{name: "weekdays only", raw: "mon,wed,fri", want: "0 0 0 * * 1,3,5"},
		{name: "weekdays and time", raw: "mon,wed,fri 07:15", want: "0 15 7 * * 1,3,5"},
		{name: "long day names", raw: "Sunday,Saturday 10:00", want: "0 0 10 * * 0,6"},
		{name: "iso date", raw: "2025-12-25 7:00", want: "0 0 7 25 12 *"},
		{name: "month day", raw: "12/4", want: "0 0 0 4 12 *"},
		{name: "month day year", raw: "12/4/2026 6:05:09", want: "9 5 6 4 12 *"},
		{name: "order independent", raw: "9:00 tue", want: "0 0 9 * * 2"},
		{name: "canonical passthrough", raw: "0 0 12 4 12 *", want: "0 0 12 4 12 *"},
		{name: "five fields get wildcard seconds", raw: "0 17 * * *", want: "* 0 17 * * *"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "noon", "mon,xyz", "jan-1", "25:00", "12/40", "17", "8:00 9:00"} {
		_, err := Normalize(raw)
		if err == nil {
			t.Fatalf("Normalize(%q): expected error", raw)
		}
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("Normalize(%q): error %T is not *ConfigError", raw, err)
		}
	}
}

func TestDayOfMonthOverridesWeekday(t *testing.T) {
	t.Parallel()
	// Noon on Dec 4, across years so the weekday varies.
	rules := []string{"0 0 12 4 12 *", "0 0 12 4 12 1"}
	for year := 2020; year <= 2027; year++ {
		at := time.Date(year, time.December, 4, 12, 0, 0, 0, time.UTC)
		for _, s := range rules {
			r, err := ParseRule(s)
			if err != nil {
				t.Fatalf("ParseRule(%q): %v", s, err)
			}
			if !r.Matches(TimeTuple(at)) {
				t.Fatalf("%q did not match %s (%s)", s, at.Format(time.RFC3339), at.Weekday())
			}
		}
	}
}

func TestWeekdayAppliesWithoutDayOfMonth(t *testing.T) {
	t.Parallel()
	r, err := ParseRule("mon 9:00")
	if err != nil {
		t.Fatal(err)
	}
	monday := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	if !r.Matches(TimeTuple(monday)) {
		t.Fatal("expected match on Monday")
	}
	if r.Matches(TimeTuple(tuesday)) {
		t.Fatal("unexpected match on Tuesday")
	}
}

func TestCheckEndToEnd(t *testing.T) {
	t.Parallel()
	c, err := New([]string{"17:00:00", "mon,wed,fri", "17:00:00 sat"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Rules()[0].Canonical; got != "0 0 17 * * *" {
		t.Fatalf("canonical = %q", got)
	}

	// 2026-10-21 is a Wednesday.
	at := time.Date(2026, time.October, 21, 17, 0, 0, 0, time.UTC)
	got := c.CheckAt(at)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("CheckAt(17:00:00) = %v, want [0]", got)
	}
	if got := c.CheckAt(at.Add(time.Second)); len(got) != 0 {
		t.Fatalf("CheckAt(17:00:01) = %v, want none", got)
	}

	midnight := time.Date(2026, time.October, 21, 0, 0, 0, 0, time.UTC)
	if got := c.CheckAt(midnight); len(got) != 1 || got[0] != 1 {
		t.Fatalf("CheckAt(wed 00:00:00) = %v, want [1]", got)
	}
}

func TestCheckDedupWithinSecond(t *testing.T) {
	t.Parallel()
	c, err := New([]string{"* * * * * *"})
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	now := base
	c.SetClock(func() time.Time { return now })

	if got := c.Check(); len(got) != 1 {
		t.Fatalf("first Check = %v, want one match", got)
	}
	now = base.Add(400 * time.Millisecond)
	if got := c.Check(); got != nil {
		t.Fatalf("second Check in same second = %v, want nil", got)
	}
	now = base.Add(time.Second)
	if got := c.Check(); len(got) != 1 {
		t.Fatalf("Check in next second = %v, want one match", got)
	}
}

func TestNewFailsOnBadRule(t *testing.T) {
	t.Parallel()
	if _, err := New([]string{"17:00", "tomorrow"}); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestNextFire(t *testing.T) {
	t.Parallel()
	c, err := New([]string{"17:00:00"})
	if err != nil {
		t.Fatal(err)
	}
	from := time.Date(2026, time.October, 19, 16, 59, 59, 0, time.UTC)
	next, err := c.Next(0, from)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next.Hour() != 17 || next.Minute() != 0 || next.Second() != 0 || next.Day() != 19 {
		t.Fatalf("Next = %s, want 2026-10-19 17:00:00", next)
	}
	if _, err := c.Next(3, from); err == nil {
		t.Fatal("expected out of range error")
	}
}
