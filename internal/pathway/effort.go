package pathway

import (
	"fmt"
	"math"

	"pathways-backend/internal/models"
)

type EffortTrack string

const (
	Effort15Min  EffortTrack = "15min"
	Effort60Min  EffortTrack = "60min"
	Effort4Hours EffortTrack = "4hrs"
	EffortWeekly EffortTrack = "weekly"
)

type EffortMode struct {
	Track       EffortTrack
	WeeklyHours float64
}

func ParseEffort(sel models.EffortSelection) (EffortMode, error) {
	m := EffortMode{Track: EffortTrack(sel.Mode), WeeklyHours: sel.WeeklyHours}
	if err := m.Validate(); err != nil {
		return EffortMode{}, err
	}
	return m, nil
}

func (m EffortMode) Validate() error {
	switch m.Track {
	case Effort15Min, Effort60Min, Effort4Hours:
		return nil
	case EffortWeekly:
		if m.WeeklyHours <= 0 || math.IsNaN(m.WeeklyHours) || math.IsInf(m.WeeklyHours, 0) {
			return fmt.Errorf("%w: weekly mode requires weeklyHours > 0", ErrInvalidEffortMode)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEffortMode, m.Track)
	}
}

// DailyMinutes is the per-day time budget for a day set of the given size.
// Weekly hours are spread evenly over the selected days of each week, so a
// 14-day selection gets two weeks' worth of hours.
func (m EffortMode) DailyMinutes(dayCount int) int {
	switch m.Track {
	case Effort15Min:
		return 15
	case Effort60Min:
		return 60
	case Effort4Hours:
		return 240
	case EffortWeekly:
		if dayCount <= 0 {
			return 0
		}
		weeks := math.Ceil(float64(dayCount) / 7)
		mins := int(math.Round(m.WeeklyHours * 60 * weeks / float64(dayCount)))
		if mins < 5 {
			mins = 5
		}
		return mins
	}
	return 0
}

// Describe renders the effort mode for prompts.
func (m EffortMode) Describe(dayCount int) string {
	switch m.Track {
	case EffortWeekly:
		return fmt.Sprintf("about %.1f hours per week, roughly %d minutes on each planned day", m.WeeklyHours, m.DailyMinutes(dayCount))
	default:
		return fmt.Sprintf("about %d minutes per day", m.DailyMinutes(dayCount))
	}
}
