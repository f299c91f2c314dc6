package pathway

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

type SelectionMode string

const (
	ModeEntireTrip SelectionMode = "entire-trip"
	ModeDateRange  SelectionMode = "date-range"
	ModeSelectDays SelectionMode = "select-days"
)

// DaySelection describes which trip days to plan for.
type DaySelection struct {
	TripStart string
	TripEnd   string
	Mode      SelectionMode

	// date-range bounds; clamped to the trip.
	RangeStart string
	RangeEnd   string

	// select-days: the toggled-on dates.
	Selected []string
}

// ResolveDays turns a selection into an ascending, deduplicated list of
// dates inside [TripStart, TripEnd]. An empty result is ErrNothingToPlan.
func ResolveDays(sel DaySelection) ([]string, error) {
	start, err := parseDate(sel.TripStart)
	if err != nil {
		return nil, fmt.Errorf("trip start: %w", err)
	}
	end, err := parseDate(sel.TripEnd)
	if err != nil {
		return nil, fmt.Errorf("trip end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("trip end %s is before trip start %s", sel.TripEnd, sel.TripStart)
	}

	var days []string
	switch sel.Mode {
	case ModeEntireTrip, "":
		days = dateRange(start, end)
	case ModeDateRange:
		from, to := start, end
		if sel.RangeStart != "" {
			if from, err = parseDate(sel.RangeStart); err != nil {
				return nil, fmt.Errorf("range start: %w", err)
			}
		}
		if sel.RangeEnd != "" {
			if to, err = parseDate(sel.RangeEnd); err != nil {
				return nil, fmt.Errorf("range end: %w", err)
			}
		}
		from, to = clamp(from, start, end), clamp(to, start, end)
		if !to.Before(from) {
			days = dateRange(from, to)
		}
	case ModeSelectDays:
		for _, raw := range sel.Selected {
			d, err := parseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("selected day %q: %w", raw, err)
			}
			if d.Before(start) || d.After(end) {
				continue
			}
			days = append(days, d.Format(DateLayout))
		}
		slices.Sort(days)
		days = slices.Compact(days)
	default:
		return nil, fmt.Errorf("unknown day selection mode %q", sel.Mode)
	}

	if len(days) == 0 {
		return nil, ErrNothingToPlan
	}
	return days, nil
}

// DaySetResolver memoizes the last resolution so recomputing with unchanged
// inputs hands back the identical slice. Callers must not mutate it.
type DaySetResolver struct {
	mu   sync.Mutex
	last *DaySelection
	days []string
}

func (r *DaySetResolver) Resolve(sel DaySelection) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last != nil && sameSelection(*r.last, sel) {
		return r.days, nil
	}

	days, err := ResolveDays(sel)
	if err != nil {
		return nil, err
	}

	cp := sel
	cp.Selected = slices.Clone(sel.Selected)
	r.last = &cp
	r.days = days
	return days, nil
}

// EqualDays reports whether two day sets are element-wise equal.
func EqualDays(a, b []string) bool {
	return slices.Equal(a, b)
}

func sameSelection(a, b DaySelection) bool {
	return a.TripStart == b.TripStart &&
		a.TripEnd == b.TripEnd &&
		a.Mode == b.Mode &&
		a.RangeStart == b.RangeStart &&
		a.RangeEnd == b.RangeEnd &&
		slices.Equal(a.Selected, b.Selected)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func clamp(d, lo, hi time.Time) time.Time {
	if d.Before(lo) {
		return lo
	}
	if d.After(hi) {
		return hi
	}
	return d
}

func dateRange(from, to time.Time) []string {
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}
