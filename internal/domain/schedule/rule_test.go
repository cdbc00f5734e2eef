package schedule

import (
	"testing"
	"time"
)

func TestParseRuleInterval(t *testing.T) {
	r, err := ParseRule("every:15m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != KindInterval {
		t.Fatalf("expected kind interval, got %q", r.Kind)
	}
	if r.Every != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", r.Every)
	}
}

func TestParseRuleIntervalTooShort(t *testing.T) {
	if _, err := ParseRule("every:500ms"); err == nil {
		t.Fatal("expected error for sub-second interval, got nil")
	}
}

func TestParseRuleDaily(t *testing.T) {
	r, err := ParseRule("daily:06:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != KindDaily || r.Hour != 6 || r.Minute != 30 {
		t.Fatalf("expected daily 06:30, got %+v", r)
	}
}

func TestParseRuleWeekly(t *testing.T) {
	r, err := ParseRule("weekly:mon,thu:06:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != KindWeekly {
		t.Fatalf("expected kind weekly, got %q", r.Kind)
	}
	if len(r.Weekdays) != 2 || r.Weekdays[0] != time.Monday || r.Weekdays[1] != time.Thursday {
		t.Fatalf("expected [Mon Thu], got %v", r.Weekdays)
	}
}

func TestParseRuleMonthly(t *testing.T) {
	r, err := ParseRule("monthly:15,1:08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind != KindDayOfMonth {
		t.Fatalf("expected kind day_of_month, got %q", r.Kind)
	}
	// Days are normalized to ascending order.
	if len(r.MonthDays) != 2 || r.MonthDays[0] != 1 || r.MonthDays[1] != 15 {
		t.Fatalf("expected [1 15], got %v", r.MonthDays)
	}
}

func TestParseRuleInvalid(t *testing.T) {
	cases := []string{
		"",
		"hourly:06:00",
		"daily:25:00",
		"daily:10:61",
		"weekly:someday:06:00",
		"monthly:0:06:00",
		"monthly:32:06:00",
		"weekly:mon",
	}
	for _, expr := range cases {
		if _, err := ParseRule(expr); err == nil {
			t.Errorf("ParseRule(%q): expected error, got nil", expr)
		}
	}
}

func TestRuleStringRoundTrip(t *testing.T) {
	exprs := []string{
		"every:15m0s",
		"daily:06:30",
		"weekly:mon,thu:06:30",
		"monthly:1,15:08:00",
	}
	for _, expr := range exprs {
		r, err := ParseRule(expr)
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", expr, err)
		}
		if got := r.String(); got != expr {
			t.Errorf("String() = %q, want %q", got, expr)
		}
	}
}

func TestNextAfterInterval(t *testing.T) {
	r := Rule{Kind: KindInterval, Every: time.Hour}
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	next := r.NextAfter(now)
	if !next.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected %v, got %v", now.Add(time.Hour), next)
	}
}

func TestNextAfterDaily(t *testing.T) {
	r := Rule{Kind: KindDaily, Hour: 6, Minute: 30}

	// Before today's occurrence: same day.
	now := time.Date(2025, 6, 2, 5, 0, 0, 0, time.UTC)
	next := r.NextAfter(now)
	want := time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}

	// Exactly at the occurrence: strictly after, so tomorrow.
	next = r.NextAfter(want)
	tomorrow := time.Date(2025, 6, 3, 6, 30, 0, 0, time.UTC)
	if !next.Equal(tomorrow) {
		t.Fatalf("expected %v, got %v", tomorrow, next)
	}
}

func TestNextAfterWeekly(t *testing.T) {
	r := Rule{Kind: KindWeekly, Hour: 9, Minute: 0, Weekdays: []time.Weekday{time.Monday, time.Thursday}}

	// Tuesday -> next Thursday.
	tue := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	next := r.NextAfter(tue)
	want := time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
	if next.Weekday() != time.Thursday {
		t.Fatalf("expected Thursday, got %v", next.Weekday())
	}

	// Monday after 09:00 -> Thursday, not next Monday.
	mon := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	next = r.NextAfter(mon)
	if next.Weekday() != time.Thursday {
		t.Fatalf("expected Thursday, got %v (%v)", next.Weekday(), next)
	}
}

func TestNextAfterMonthly(t *testing.T) {
	r := Rule{Kind: KindDayOfMonth, Hour: 8, Minute: 0, MonthDays: []int{1, 15}}

	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	next := r.NextAfter(now)
	want := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextAfterMonthlySkipsShortMonths(t *testing.T) {
	// Day 31 does not exist in June; the next occurrence is July 31.
	r := Rule{Kind: KindDayOfMonth, Hour: 0, Minute: 0, MonthDays: []int{31}}

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	next := r.NextAfter(now)
	want := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextAfterIsStrictlyAfter(t *testing.T) {
	rules := []Rule{
		{Kind: KindInterval, Every: time.Minute},
		{Kind: KindDaily, Hour: 12, Minute: 0},
		{Kind: KindWeekly, Hour: 12, Minute: 0, Weekdays: []time.Weekday{time.Wednesday}},
		{Kind: KindDayOfMonth, Hour: 12, Minute: 0, MonthDays: []int{10}},
	}
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) // Wednesday the 10th at 12:00

	for _, r := range rules {
		next := r.NextAfter(now)
		if !next.After(now) {
			t.Errorf("rule %s: NextAfter(%v) = %v, not strictly after", r.Kind, now, next)
		}
	}
}
