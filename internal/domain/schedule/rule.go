package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RuleKind discriminates the closed set of recurrence variants.
// Arbitrary cron syntax is deliberately not supported; the variants below are
// small enough to test exhaustively.
type RuleKind string

const (
	KindInterval   RuleKind = "interval"
	KindDaily      RuleKind = "daily"
	KindWeekly     RuleKind = "weekly"
	KindDayOfMonth RuleKind = "day_of_month"
)

// Rule is a parsed recurrence rule.
type Rule struct {
	Kind RuleKind `json:"kind"`

	// Every is the fixed interval for KindInterval.
	Every time.Duration `json:"every,omitempty"`

	// Hour/Minute apply to the calendar kinds (UTC).
	Hour   int `json:"hour,omitempty"`
	Minute int `json:"minute,omitempty"`

	// Weekdays applies to KindWeekly.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// MonthDays applies to KindDayOfMonth (1–31; days past the end of a
	// month are skipped for that month).
	MonthDays []int `json:"month_days,omitempty"`
}

// ParseRule parses a compact recurrence expression.
// Supported formats:
//   - "every:<duration>"                → fixed interval, e.g. "every:15m"
//   - "daily:HH:MM"                     → every day at HH:MM UTC
//   - "weekly:Day[,Day...]:HH:MM"       → e.g. "weekly:mon,thu:06:30"
//   - "monthly:D[,D...]:HH:MM"          → e.g. "monthly:1,15:08:00"
func ParseRule(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Rule{}, fmt.Errorf("empty schedule rule")
	}

	switch {
	case strings.HasPrefix(expr, "every:"):
		d, err := time.ParseDuration(strings.TrimPrefix(expr, "every:"))
		if err != nil {
			return Rule{}, fmt.Errorf("invalid interval: %w", err)
		}
		if d < time.Second {
			return Rule{}, fmt.Errorf("interval %s too short (minimum 1s)", d)
		}
		return Rule{Kind: KindInterval, Every: d}, nil

	case strings.HasPrefix(expr, "daily:"):
		h, m, err := parseHHMM(strings.TrimPrefix(expr, "daily:"))
		if err != nil {
			return Rule{}, err
		}
		return Rule{Kind: KindDaily, Hour: h, Minute: m}, nil

	case strings.HasPrefix(expr, "weekly:"):
		rest := strings.TrimPrefix(expr, "weekly:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return Rule{}, fmt.Errorf("expected weekly:Day[,Day...]:HH:MM, got %q", expr)
		}
		days, err := parseWeekdays(parts[0])
		if err != nil {
			return Rule{}, err
		}
		h, m, err := parseHHMM(parts[1])
		if err != nil {
			return Rule{}, err
		}
		return Rule{Kind: KindWeekly, Hour: h, Minute: m, Weekdays: days}, nil

	case strings.HasPrefix(expr, "monthly:"):
		rest := strings.TrimPrefix(expr, "monthly:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return Rule{}, fmt.Errorf("expected monthly:D[,D...]:HH:MM, got %q", expr)
		}
		days, err := parseMonthDays(parts[0])
		if err != nil {
			return Rule{}, err
		}
		h, m, err := parseHHMM(parts[1])
		if err != nil {
			return Rule{}, err
		}
		return Rule{Kind: KindDayOfMonth, Hour: h, Minute: m, MonthDays: days}, nil

	default:
		return Rule{}, fmt.Errorf("unrecognized schedule rule: %q", expr)
	}
}

// ValidateRule checks if a rule expression is syntactically valid.
func ValidateRule(expr string) error {
	_, err := ParseRule(expr)
	return err
}

// String renders the rule back to its compact expression form.
func (r Rule) String() string {
	switch r.Kind {
	case KindInterval:
		return "every:" + r.Every.String()
	case KindDaily:
		return fmt.Sprintf("daily:%02d:%02d", r.Hour, r.Minute)
	case KindWeekly:
		names := make([]string, len(r.Weekdays))
		for i, d := range r.Weekdays {
			names[i] = strings.ToLower(d.String()[:3])
		}
		return fmt.Sprintf("weekly:%s:%02d:%02d", strings.Join(names, ","), r.Hour, r.Minute)
	case KindDayOfMonth:
		nums := make([]string, len(r.MonthDays))
		for i, d := range r.MonthDays {
			nums[i] = strconv.Itoa(d)
		}
		return fmt.Sprintf("monthly:%s:%02d:%02d", strings.Join(nums, ","), r.Hour, r.Minute)
	}
	return ""
}

// NextAfter returns the next occurrence of this rule strictly after t.
func (r Rule) NextAfter(t time.Time) time.Time {
	t = t.UTC()

	switch r.Kind {
	case KindInterval:
		return t.Add(r.Every)

	case KindDaily:
		candidate := time.Date(t.Year(), t.Month(), t.Day(), r.Hour, r.Minute, 0, 0, time.UTC)
		if !candidate.After(t) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate

	case KindWeekly:
		for i := range 8 {
			day := t.AddDate(0, 0, i)
			candidate := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, r.Minute, 0, 0, time.UTC)
			if candidate.After(t) && r.matchesWeekday(candidate.Weekday()) {
				return candidate
			}
		}
		return t.AddDate(0, 0, 7)

	case KindDayOfMonth:
		// Scan forward up to ~2 months of days; every listed day of month
		// occurs at least once in that window.
		for i := range 63 {
			day := t.AddDate(0, 0, i)
			candidate := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, r.Minute, 0, 0, time.UTC)
			if candidate.After(t) && r.matchesMonthDay(candidate.Day()) {
				return candidate
			}
		}
		return t.AddDate(0, 1, 0)
	}

	return t
}

func (r Rule) matchesWeekday(d time.Weekday) bool {
	for _, want := range r.Weekdays {
		if want == d {
			return true
		}
	}
	return false
}

func (r Rule) matchesMonthDay(d int) bool {
	for _, want := range r.MonthDays {
		if want == d {
			return true
		}
	}
	return false
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return h, m, nil
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		d, err := parseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
}

func parseMonthDays(s string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 1 || d > 31 {
			return nil, fmt.Errorf("invalid day of month %q", part)
		}
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}
