package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerDay  = 24 * 60
	minutesPerWeek = 7 * minutesPerDay
)

var (
	ErrInvalidClock = errors.New("clock must be HH:MM between 00:00 and 24:00")
	ErrEmptyRule    = errors.New("rule start and end must differ")
	ErrBadWeekday   = errors.New("weekday must be 0 (Sunday) through 6 (Saturday)")
)

// Clock is a local wall-clock time expressed in minutes after midnight.
// 1440 ("24:00") is allowed as an end-of-day marker.
type Clock int

func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, ErrInvalidClock
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, ErrInvalidClock
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 || hours < 0 || hours > 24 {
		return 0, ErrInvalidClock
	}
	c := Clock(hours*60 + minutes)
	if c > minutesPerDay {
		return 0, ErrInvalidClock
	}
	return c, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) Valid() bool {
	return c >= 0 && c <= minutesPerDay
}

// Rule is one recurring weekly availability window. End at or before Start
// means the window runs past midnight into the next day.
type Rule struct {
	Weekday      time.Weekday
	Start        Clock
	End          Clock
	SessionTypes []string
}

func (r Rule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return ErrBadWeekday
	}
	if !r.Start.Valid() || !r.End.Valid() || r.Start == minutesPerDay {
		return ErrInvalidClock
	}
	if r.Start == r.End {
		return ErrEmptyRule
	}
	return nil
}

func (r Rule) CrossesMidnight() bool {
	return r.End <= r.Start
}

// Offers reports whether the rule accepts the session type. A rule without
// explicit types accepts every type; an empty sessionType matches any rule.
func (r Rule) Offers(sessionType string) bool {
	if sessionType == "" || len(r.SessionTypes) == 0 {
		return true
	}
	for _, t := range r.SessionTypes {
		if t == sessionType {
			return true
		}
	}
	return false
}

// weekMinutes places the rule on a Sunday-based minute-of-week axis.
func (r Rule) weekMinutes() (int, int) {
	start := int(r.Weekday)*minutesPerDay + int(r.Start)
	end := int(r.Weekday)*minutesPerDay + int(r.End)
	if r.CrossesMidnight() {
		end += minutesPerDay
	}
	return start, end
}

type Conflict struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

func (c Conflict) Error() string {
	return fmt.Sprintf("availability rules %d and %d overlap", c.First, c.Second)
}

// RuleConflicts lists every pair of rules whose weekly windows overlap. The
// week is treated as a circle so a Saturday-night rule running past midnight
// is checked against Sunday-morning rules.
func RuleConflicts(rules []Rule) []Conflict {
	var out []Conflict
	for i := 0; i < len(rules); i++ {
		as, ae := rules[i].weekMinutes()
		for j := i + 1; j < len(rules); j++ {
			bs, be := rules[j].weekMinutes()
			for _, shift := range []int{-minutesPerWeek, 0, minutesPerWeek} {
				if as < be+shift && bs+shift < ae {
					out = append(out, Conflict{First: i, Second: j})
					break
				}
			}
		}
	}
	return out
}

// ValidateRules checks each rule and returns the first conflict found.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	if conflicts := RuleConflicts(rules); len(conflicts) > 0 {
		return conflicts[0]
	}
	return nil
}

type ExceptionKind string

const (
	ExceptionBlocked ExceptionKind = "blocked"
	ExceptionExtra   ExceptionKind = "extra"
)

// Exception is a one-off change to the weekly pattern.
type Exception struct {
	Interval
	Kind ExceptionKind
}

// at resolves a local wall-clock time on the given local date.
func at(date time.Time, c Clock, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// Windows expands rules and exceptions into merged UTC availability windows
// inside [from, to). Only rules offering sessionType are used.
func Windows(rules []Rule, exceptions []Exception, loc *time.Location, from, to time.Time, sessionType string) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	if !from.Before(to) {
		return nil
	}

	var raw []Interval
	// Start one day early so windows that began the previous evening count.
	day := LocalMidnight(from, loc).AddDate(0, 0, -1)
	last := LocalMidnight(to, loc)
	for !day.After(last) {
		for _, r := range rules {
			if r.Weekday != day.Weekday() || !r.Offers(sessionType) {
				continue
			}
			start := at(day, r.Start, loc)
			endDay := day
			if r.CrossesMidnight() {
				endDay = day.AddDate(0, 0, 1)
			}
			end := at(endDay, r.End, loc)
			raw = append(raw, Interval{Start: start, End: end}.UTC())
		}
		day = day.AddDate(0, 0, 1)
	}

	var blocked []Interval
	for _, ex := range exceptions {
		switch ex.Kind {
		case ExceptionExtra:
			raw = append(raw, ex.Interval.UTC())
		case ExceptionBlocked:
			blocked = append(blocked, ex.Interval.UTC())
		}
	}

	windows := Subtract(Merge(raw), blocked)
	return Clip(windows, Interval{Start: from.UTC(), End: to.UTC()})
}
