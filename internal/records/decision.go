package records

import "time"

// Action taken by a user on a helper for a job.
type Action string

const (
	ActionViewed      Action = "viewed"
	ActionShortlisted Action = "shortlisted"
	ActionRejected    Action = "rejected"
	ActionHired       Action = "hired"
)

// Actions lists every accepted action in display order.
var Actions = []Action{ActionViewed, ActionShortlisted, ActionRejected, ActionHired}

// Snapshot freezes the helper attributes and job preferences seen when a decision was made.
type Snapshot struct {
	HelperAge             int      `mapstructure:"helper-age" json:"helper-age,omitempty"`
	HelperNationality     string   `mapstructure:"helper-nationality" json:"helper-nationality,omitempty"`
	HelperSkills          []string `mapstructure:"helper-skills" json:"helper-skills,omitempty"`
	HelperExperienceYears float64  `mapstructure:"helper-experience-years" json:"helper-experience-years,omitempty"`

	JobAge            AgeRange `mapstructure:"job-age" json:"job-age"`
	JobNationalities  []string `mapstructure:"job-nationalities" json:"job-nationalities,omitempty"`
	JobRequiredSkills []string `mapstructure:"job-required-skills" json:"job-required-skills,omitempty"`
}

// Decision is an immutable entry of the decision log.
type Decision struct {
	ID           string    `json:"id"`
	ActingUserID string    `json:"acting-user-id" validate:"required"`
	HelperID     string    `json:"helper-id" validate:"required"`
	JobID        string    `json:"job-id" validate:"required"`
	Action       Action    `json:"action" validate:"required,oneof=viewed shortlisted rejected hired"`
	Timestamp    time.Time `json:"timestamp"`
	Snapshot     Snapshot  `json:"snapshot"`
}
