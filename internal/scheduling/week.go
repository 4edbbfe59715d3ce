package scheduling

import "time"

// LocalMidnight returns 00:00 of t's calendar date in loc.
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekStart returns local midnight of the Sunday on or before t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := LocalMidnight(t, loc)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// Week returns the seven local midnights Sunday through Saturday of the week
// containing t.
func Week(t time.Time, loc *time.Location) []time.Time {
	start := WeekStart(t, loc)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

type Day struct {
	Date  time.Time  `json:"date"`
	Slots []Interval `json:"slots"`
}

// GroupByDay buckets slots by the local date they start on. The result always
// has seven entries for the week containing weekOf; slots from other weeks
// are ignored.
func GroupByDay(slots []Interval, weekOf time.Time, loc *time.Location) []Day {
	days := Week(weekOf, loc)
	out := make([]Day, len(days))
	for i, d := range days {
		out[i] = Day{Date: d, Slots: []Interval{}}
	}

	first := days[0]
	end := days[6].AddDate(0, 0, 1)
	for _, s := range slots {
		local := s.Start.In(first.Location())
		if local.Before(first) || !local.Before(end) {
			continue
		}
		idx := int(LocalMidnight(local, first.Location()).Weekday())
		out[idx].Slots = append(out[idx].Slots, s)
	}
	return out
}

// sinceLocalMidnight is the wall-clock offset of t into its day in loc.
func sinceLocalMidnight(t time.Time, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	h, m, s := local.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(local.Nanosecond())
}

// Aligned reports whether t falls on a size boundary of the local clock in
// loc, counted from local midnight.
func Aligned(t time.Time, size time.Duration, loc *time.Location) bool {
	return size > 0 && sinceLocalMidnight(t, loc)%size == 0
}

// AlignUp returns the first local size boundary at or after t.
func AlignUp(t time.Time, size time.Duration, loc *time.Location) time.Time {
	if size <= 0 {
		return t
	}
	off := sinceLocalMidnight(t, loc) % size
	if off == 0 {
		return t
	}
	return t.Add(size - off)
}
