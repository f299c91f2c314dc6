package pathway

import (
	"fmt"
	"strings"

	"pathways-backend/internal/models"
)

func writeProfile(b *strings.Builder, p models.LearnerProfile) {
	b.WriteString("Learner profile:\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("- Name: %s\n", p.Name))
	}
	if p.Age > 0 {
		b.WriteString(fmt.Sprintf("- Age: %d\n", p.Age))
	}
	if p.Timezone != "" {
		b.WriteString(fmt.Sprintf("- Timezone: %s\n", p.Timezone))
	}
	writeList(b, "Preferred times of day", p.Scheduling.PreferredTimesOfDay)
	if p.Scheduling.SessionLengthMinutes > 0 {
		b.WriteString(fmt.Sprintf("- Preferred session length: %d minutes\n", p.Scheduling.SessionLengthMinutes))
	}
	if p.Scheduling.InteractionStyle != "" {
		b.WriteString(fmt.Sprintf("- Interaction style: %s\n", p.Scheduling.InteractionStyle))
	}
	writeList(b, "Interests", p.PBL.Interests)
	if p.PBL.CurrentLevel != "" {
		b.WriteString(fmt.Sprintf("- Current level: %s\n", p.PBL.CurrentLevel))
	}
	writeList(b, "Learning goals", p.PBL.LearningGoals)
	writeList(b, "Preferred artifacts", p.PBL.PreferredArtifactTypes)
	writeList(b, "Preferred field experiences", p.Experiential.PreferredFieldExperiences)
	if p.Experiential.ReflectionStyle != "" {
		b.WriteString(fmt.Sprintf("- Reflection style: %s\n", p.Experiential.ReflectionStyle))
	}
	if p.Experiential.InquiryApproach != "" {
		b.WriteString(fmt.Sprintf("- Inquiry approach: %s\n", p.Experiential.InquiryApproach))
	}
	b.WriteString("\n")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("- %s: %s\n", label, strings.Join(items, ", ")))
}

func writeTrip(b *strings.Builder, t models.Trip) {
	b.WriteString("Trip:\n")
	if t.Title != "" {
		b.WriteString(fmt.Sprintf("- Title: %s\n", t.Title))
	}
	b.WriteString(fmt.Sprintf("- Base location: %s\n", t.BaseLocation))
	b.WriteString(fmt.Sprintf("- Dates: %s to %s\n\n", t.StartDate, t.EndDate))
}

func buildDraftPrompt(profile models.LearnerProfile, trip models.Trip, dateSet []string, effort EffortMode) string {
	var b strings.Builder
	n := len(dateSet)

	// Layer 1 - Role
	b.WriteString("You are an experienced project-based learning designer who plans learning pathways for families on trips.\n\n")

	// Layer 2 - Task
	b.WriteString(fmt.Sprintf("Propose exactly %d different pathway drafts for the learner below. Each draft is a short day-by-day outline with no clock times.\n\n", DraftCount))

	// Layer 3 - Context
	writeProfile(&b, profile)
	writeTrip(&b, trip)

	// Layer 4 - Effort and days
	b.WriteString(fmt.Sprintf("Time budget: %s.\n", effort.Describe(n)))
	b.WriteString(fmt.Sprintf("Every draft must contain exactly %d days, one per date below, in this order:\n", n))
	for i, d := range dateSet {
		b.WriteString(fmt.Sprintf("  Day %d: %s\n", i+1, d))
	}
	b.WriteString("\n")

	// Layer 5 - Output contract
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no commentary.\n")
	b.WriteString(`
JSON schema:
{"drafts": [{"id": "option-1"|"option-2"|"option-3", "type": "string (short style label, e.g. field-explorer)", "title": "string", "overview": "string", "whyItFits": "string", "rationale": "string", "days": [{"day": int, "date": "YYYY-MM-DD", "headline": "string", "summary": "string"}]}]}

Use ids option-1, option-2 and option-3. Make the three drafts meaningfully different in approach.
`)
	return b.String()
}

func buildFinalizePrompt(draft models.PathwayDraft, profile models.LearnerProfile, trip models.Trip, dateSet []string, effort EffortMode) string {
	var b strings.Builder
	n := len(dateSet)
	tz := profile.Timezone
	if tz == "" {
		tz = "the trip's local time"
	}

	b.WriteString("You are an experienced project-based learning designer. Expand the chosen pathway draft into a detailed, scheduled plan.\n\n")

	b.WriteString("Chosen draft:\n")
	b.WriteString(fmt.Sprintf("- Title: %s\n", draft.Title))
	b.WriteString(fmt.Sprintf("- Overview: %s\n", draft.Overview))
	if draft.WhyItFits != "" {
		b.WriteString(fmt.Sprintf("- Why it fits: %s\n", draft.WhyItFits))
	}
	if draft.Rationale != "" {
		b.WriteString(fmt.Sprintf("- Caregiver rationale: %s\n", draft.Rationale))
	}
	b.WriteString("\n")

	writeProfile(&b, profile)
	writeTrip(&b, trip)

	b.WriteString(fmt.Sprintf("Time budget: %s. The schedule blocks of a day should add up to roughly that budget.\n\n", effort.Describe(n)))

	b.WriteString(fmt.Sprintf("Plan exactly %d days, one object per day, in this order:\n", n))
	for i, d := range draft.Days {
		date := d.Date
		if i < n {
			date = dateSet[i]
		}
		line := fmt.Sprintf("  Day %d (%s): %s", i+1, date, d.Headline)
		if d.Summary != "" {
			line += " - " + d.Summary
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Block start times are ISO 8601 date-times in %s.\n", tz))
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no commentary.\n")
	b.WriteString(fmt.Sprintf(`
JSON schema:
{"summary": "string", "days": [{"day": int, "date": "YYYY-MM-DD", "drivingQuestion": "string", "fieldExperience": "string", "inquiryTask": "string", "artifact": "string", "reflectionPrompt": "string", "critiqueStep": "string", "scheduleBlocks": [{"startTime": "YYYY-MM-DDTHH:MM:SS", "duration": int (minutes), "title": "string", "description": "string"}]}]}

The "days" array must have exactly %d entries.
`, n))
	return b.String()
}
