package models

// Trip is the read-only trip context handed to the pathway pipeline.
type Trip struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	StartDate    string `json:"startDate"` // YYYY-MM-DD, inclusive
	EndDate      string `json:"endDate"`   // YYYY-MM-DD, inclusive
	BaseLocation string `json:"baseLocation"`
}

type LearnerProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age,omitempty"`
	Timezone string `json:"timezone"`

	Scheduling   SchedulingPreferences `json:"scheduling"`
	PBL          PBLProfile            `json:"pbl"`
	Experiential ExperientialProfile   `json:"experiential"`
}

type SchedulingPreferences struct {
	PreferredTimesOfDay  []string `json:"preferredTimesOfDay"` // "morning" | "afternoon" | "evening"
	SessionLengthMinutes int      `json:"sessionLengthMinutes"`
	InteractionStyle     string   `json:"interactionStyle"`
}

type PBLProfile struct {
	Interests              []string `json:"interests"`
	CurrentLevel           string   `json:"currentLevel"`
	LearningGoals          []string `json:"learningGoals"`
	PreferredArtifactTypes []string `json:"preferredArtifactTypes"`
}

type ExperientialProfile struct {
	PreferredFieldExperiences []string `json:"preferredFieldExperiences"`
	ReflectionStyle           string   `json:"reflectionStyle"`
	InquiryApproach           string   `json:"inquiryApproach"`
}
