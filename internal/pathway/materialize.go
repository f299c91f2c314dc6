package pathway

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"pathways-backend/internal/catalog"
	"pathways-backend/internal/metrics"
	"pathways-backend/internal/models"
)

const defaultStartClock = "09:00:00"

var startTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3PM",
}

// Materializer turns a finalized plan into persisted schedule blocks.
type Materializer struct {
	catalog      *catalog.Catalog
	imageBaseURL string

	// Salt varies image picks between regeneration passes of the same plan.
	Salt  string
	NewID func() string
	Now   func() time.Time
}

func NewMaterializer(cat *catalog.Catalog, imageBaseURL string) *Materializer {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Materializer{
		catalog:      cat,
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		NewID:        uuid.NewString,
		Now:          time.Now,
	}
}

// Materialize returns the trip's new block list: every manual block from
// existing, unchanged and in order, followed by one generated block per plan
// block. Previously generated blocks are dropped.
func (m *Materializer) Materialize(plan models.FinalPathwayPlan, existing []models.ScheduleBlock, tripID, tripLocation string) ([]models.ScheduleBlock, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}

	kept := make([]models.ScheduleBlock, 0, len(existing))
	takenIDs := make(map[string]bool, len(existing))
	for _, b := range existing {
		if b.IsGenerated {
			continue
		}
		kept = append(kept, b)
		takenIDs[b.ID] = true
	}

	now := m.Now().UTC()
	usedImages := make(map[string]bool)
	var generated []models.ScheduleBlock

	for di, day := range plan.Days {
		for bi, fb := range day.ScheduleBlocks {
			id := m.NewID()
			for takenIDs[id] {
				id = m.NewID()
			}
			takenIDs[id] = true

			activity := m.catalog.Classify(fb.Title, fb.Description, day.FieldExperience)
			img := m.pickImage(activity, fmt.Sprintf("%s|%d|%d|%s", fb.Title, di, bi, m.Salt), usedImages)

			block := models.ScheduleBlock{
				ID:               id,
				TripID:           tripID,
				Date:             day.Date,
				StartTime:        RebindStartTime(day.Date, fb.StartTime),
				Duration:         fb.Duration,
				Title:            fb.Title,
				Description:      fb.Description,
				Location:         tripLocation,
				IsGenerated:      true,
				CreatedAt:        now,
				DrivingQuestion:  day.DrivingQuestion,
				FieldExperience:  day.FieldExperience,
				InquiryTask:      day.InquiryTask,
				Artifact:         day.Artifact,
				ReflectionPrompt: day.ReflectionPrompt,
				CritiqueStep:     day.CritiqueStep,
				LocalOptions:     fb.LocalOptions,
				ImageMode:        models.ImageModeAuto,
			}
			if img != nil {
				block.ImageURL = m.imageURL(img.File)
				block.ImageAlt = img.Alt
			}
			generated = append(generated, block)
		}
	}

	if len(generated) == 0 {
		return nil, &MaterializationEmptyError{Days: len(plan.Days)}
	}
	metrics.MaterializedBlocks.Add(float64(len(generated)))
	return append(kept, generated...), nil
}

// ValidatePlan checks that every day of plan carries a calendar date and
// every block a title and a positive duration. Days without blocks are
// allowed; an entirely empty plan is reported by Materialize instead.
func ValidatePlan(plan models.FinalPathwayPlan) error {
	fields := make(map[string]string)
	for di, day := range plan.Days {
		prefix := fmt.Sprintf("plan.days[%d]", di)
		if _, err := parseDate(day.Date); err != nil {
			fields[prefix+".date"] = "Date must be YYYY-MM-DD"
		}
		for bi, b := range day.ScheduleBlocks {
			bp := fmt.Sprintf("%s.scheduleBlocks[%d]", prefix, bi)
			if strings.TrimSpace(b.Title) == "" {
				fields[bp+".title"] = "Title is required"
			}
			if b.Duration <= 0 {
				fields[bp+".duration"] = "Duration must be a positive number of minutes"
			}
		}
	}
	if len(fields) > 0 {
		return &PlanValidationError{Fields: fields}
	}
	return nil
}

// pickImage hashes key into the pool and walks forward past images already
// used in this batch. Once the pool is exhausted the hashed pick is reused.
func (m *Materializer) pickImage(activity, key string, used map[string]bool) *catalog.Image {
	pool := m.catalog.Pool(activity)
	if len(pool) == 0 {
		return nil
	}
	start := imageIndex(key, len(pool))
	for step := range len(pool) {
		img := pool[(start+step)%len(pool)]
		if !used[img.File] {
			used[img.File] = true
			return &img
		}
	}
	img := pool[start]
	return &img
}

func (m *Materializer) imageURL(file string) string {
	if m.imageBaseURL == "" {
		return "/" + file
	}
	return m.imageBaseURL + "/" + file
}

func imageIndex(key string, n int) int {
	sum := blake2b.Sum256([]byte(key))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}

// RebindStartTime combines date with the time of day found in raw. An
// explicit UTC offset in raw is kept; unparseable input starts at 09:00.
func RebindStartTime(date, raw string) string {
	raw = strings.TrimSpace(raw)
	for _, candidate := range []string{raw, strings.ToUpper(raw)} {
		for _, layout := range startTimeLayouts {
			t, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			clock := t.Format("15:04:05")
			if layout == time.RFC3339 {
				return date + "T" + clock + t.Format("Z07:00")
			}
			return date + "T" + clock
		}
	}
	return date + "T" + defaultStartClock
}

// PlanFromDraft builds the lighter plan used when a draft is applied
// directly: one block per day sized to the effort budget, with the day's
// headline as the title.
func PlanFromDraft(d models.PathwayDraft, dateSet []string, effort EffortMode, startClock string) (models.FinalPathwayPlan, error) {
	if len(dateSet) == 0 {
		return models.FinalPathwayPlan{}, ErrNothingToPlan
	}
	if err := effort.Validate(); err != nil {
		return models.FinalPathwayPlan{}, err
	}
	if len(d.Days) != len(dateSet) {
		return models.FinalPathwayPlan{}, &FinalizeValidationError{
			Field:   "draft.days",
			Message: fmt.Sprintf("has %d days, expected %d", len(d.Days), len(dateSet)),
		}
	}
	if startClock == "" {
		startClock = defaultStartClock
	}

	minutes := effort.DailyMinutes(len(dateSet))
	plan := models.FinalPathwayPlan{
		DraftID: d.ID,
		Title:   d.Title,
		Summary: d.Overview,
		Days:    make([]models.FinalDayPlan, len(dateSet)),
	}
	for i, date := range dateSet {
		day := d.Days[i]
		plan.Days[i] = models.FinalDayPlan{
			Day:             i + 1,
			Date:            date,
			FieldExperience: day.Headline,
			ScheduleBlocks: []models.FinalBlock{{
				StartTime:   startClock,
				Duration:    minutes,
				Title:       day.Headline,
				Description: day.Summary,
			}},
		}
	}
	return plan, nil
}
