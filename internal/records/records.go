// Package records holds the raw job, helper and decision documents the engine consumes.
package records

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Importance of a job skill requirement.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Weight maps an importance level to its relative weight. Unknown levels count as medium.
func (i Importance) Weight() float64 {
	switch Importance(strings.ToLower(string(i))) {
	case ImportanceLow:
		return 1.0 / 3
	case ImportanceHigh:
		return 1
	default:
		return 2.0 / 3
	}
}

// SkillRequirement describes a single skill requested by a job.
type SkillRequirement struct {
	Required   bool       `mapstructure:"required" json:"required"`
	Importance Importance `mapstructure:"importance" json:"importance"`
}

// AgeRange is an inclusive preferred age band. Zero bounds are unset.
type AgeRange struct {
	Min int `mapstructure:"min" json:"min,omitempty"`
	Max int `mapstructure:"max" json:"max,omitempty"`
}

// JobPreferences are the employer's stated preferences.
type JobPreferences struct {
	Age           AgeRange `mapstructure:"age" json:"age"`
	Nationalities []string `mapstructure:"nationality" json:"nationality,omitempty"`
	Languages     []string `mapstructure:"languages" json:"languages,omitempty"`
}

// Compensation offered for a job.
type Compensation struct {
	Salary   float64 `mapstructure:"salary" json:"salary,omitempty"`
	Currency string  `mapstructure:"currency" json:"currency,omitempty"`
}

// Household describes working conditions.
type Household struct {
	Size          int    `mapstructure:"size" json:"size,omitempty"`
	HasChildren   bool   `mapstructure:"has-children" json:"has-children,omitempty"`
	HasElderly    bool   `mapstructure:"has-elderly" json:"has-elderly,omitempty"`
	HasPets       bool   `mapstructure:"has-pets" json:"has-pets,omitempty"`
	Accommodation string `mapstructure:"accommodation" json:"accommodation,omitempty"`
}

// JobRecord is a job posting as kept by the document store.
type JobRecord struct {
	ID                 string                      `mapstructure:"id" json:"id"`
	EmployerID         string                      `mapstructure:"employer-id" json:"employer-id"`
	Title              string                      `mapstructure:"title" json:"title"`
	Description        string                      `mapstructure:"description" json:"description,omitempty"`
	Requirements       map[string]SkillRequirement `mapstructure:"requirements" json:"requirements,omitempty"`
	Preferences        JobPreferences              `mapstructure:"preferences" json:"preferences"`
	MinExperienceYears float64                     `mapstructure:"min-experience-years" json:"min-experience-years,omitempty"`
	Compensation       Compensation                `mapstructure:"compensation" json:"compensation"`
	Household          Household                   `mapstructure:"household" json:"household"`
	Urgency            string                      `mapstructure:"urgency" json:"urgency,omitempty"`
}

// HelperRecord is a helper profile as kept by the document store.
type HelperRecord struct {
	ID                     string             `mapstructure:"id" json:"id"`
	DateOfBirth            *time.Time         `mapstructure:"date-of-birth" json:"date-of-birth,omitempty"`
	Nationality            string             `mapstructure:"nationality" json:"nationality,omitempty"`
	Religion               string             `mapstructure:"religion" json:"religion,omitempty"`
	SkillsText             string             `mapstructure:"skills-text" json:"skills-text,omitempty"`
	Skills                 []string           `mapstructure:"skills" json:"skills,omitempty"`
	Languages              []string           `mapstructure:"languages" json:"languages,omitempty"`
	Experience             map[string]float64 `mapstructure:"experience" json:"experience,omitempty"`
	IsVerified             bool               `mapstructure:"is-verified" json:"is-verified"`
	IsActive               bool               `mapstructure:"is-active" json:"is-active"`
	IsRegistrationComplete bool               `mapstructure:"is-registration-complete" json:"is-registration-complete"`
	ProfileCompleteness    float64            `mapstructure:"profile-completeness" json:"profile-completeness"`
	LastActiveAt           *time.Time         `mapstructure:"last-active-at" json:"last-active-at,omitempty"`
	ResponseRate           float64            `mapstructure:"response-rate" json:"response-rate"`
}

// Eligible reports whether the helper may appear in a candidate pool.
func (h HelperRecord) Eligible() bool {
	return h.IsActive && h.IsRegistrationComplete
}

// Validate rejects records that cannot be keyed or carry impossible values.
// Missing optional fields are not errors.
func (h HelperRecord) Validate() error {
	if strings.TrimSpace(h.ID) == "" {
		return errors.New("helper id is required")
	}
	if h.ProfileCompleteness < 0 || h.ProfileCompleteness > 100 {
		return fmt.Errorf("profile completeness %.2f is outside [0, 100]", h.ProfileCompleteness)
	}
	if h.ResponseRate < 0 || h.ResponseRate > 1 {
		return fmt.Errorf("response rate %.2f is outside [0, 1]", h.ResponseRate)
	}
	for category, years := range h.Experience {
		if years < 0 {
			return fmt.Errorf("experience in %q is negative", category)
		}
	}
	return nil
}
