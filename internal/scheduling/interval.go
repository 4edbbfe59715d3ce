// Package scheduling expands a reader's weekly availability into bookable
// slots and answers overlap questions about them.
//
// All intervals are half-open, [Start, End). Wall-clock rules are resolved in
// the reader's IANA location so a 09:00 rule stays at 09:00 local time across
// daylight-saving changes; results are always returned in UTC.
package scheduling

import (
	"sort"
	"time"
)

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether the two intervals share any instant. Intervals
// that only touch (one ends when the other starts) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

// Merge sorts intervals and coalesces the ones that overlap or touch.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})

	var out []Interval
	for _, iv := range sorted {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes every busy interval from the windows.
func Subtract(windows, busy []Interval) []Interval {
	windows = Merge(windows)
	busy = Merge(busy)

	var out []Interval
	for _, w := range windows {
		rest := []Interval{w}
		for _, b := range busy {
			if !b.Overlaps(w) {
				continue
			}
			var next []Interval
			for _, r := range rest {
				if !b.Overlaps(r) {
					next = append(next, r)
					continue
				}
				if r.Start.Before(b.Start) {
					next = append(next, Interval{Start: r.Start, End: b.Start})
				}
				if b.End.Before(r.End) {
					next = append(next, Interval{Start: b.End, End: r.End})
				}
			}
			rest = next
		}
		out = append(out, rest...)
	}
	return out
}

// Clip trims intervals to bounds and drops what falls outside.
func Clip(in []Interval, bounds Interval) []Interval {
	var out []Interval
	for _, iv := range in {
		if !iv.Overlaps(bounds) {
			continue
		}
		if iv.Start.Before(bounds.Start) {
			iv.Start = bounds.Start
		}
		if iv.End.After(bounds.End) {
			iv.End = bounds.End
		}
		out = append(out, iv)
	}
	return out
}

// Covered reports whether want fits inside a single merged window.
func Covered(windows []Interval, want Interval) bool {
	if want.Empty() {
		return false
	}
	for _, w := range Merge(windows) {
		if w.Contains(want) {
			return true
		}
	}
	return false
}

// AnyOverlap returns the first interval in set that overlaps want.
func AnyOverlap(set []Interval, want Interval) (Interval, bool) {
	for _, iv := range set {
		if iv.Overlaps(want) {
			return iv, true
		}
	}
	return Interval{}, false
}

// Slots cuts each window into consecutive pieces of length size, starting at
// the window start. A trailing remainder shorter than size is dropped.
func Slots(windows []Interval, size time.Duration) []Interval {
	if size <= 0 {
		return nil
	}
	var out []Interval
	for _, w := range windows {
		for s := w.Start; !s.Add(size).After(w.End); s = s.Add(size) {
			out = append(out, Interval{Start: s, End: s.Add(size)})
		}
	}
	return out
}
