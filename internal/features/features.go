// Package features turns raw job and helper records into the normalized
// representations consumed by the scorer. Extraction never fails: absent
// fields degrade to neutral values and are reported through Missing.
package features

import (
	"math"
	"strings"
	"time"

	"github.com/spigell/helper-matcher/internal/records"
)

const (
	maxAge              = 120
	maxExperienceYears  = 60
	fullCompetencyYears = 5
	seniorYears         = 10

	recentActivity = 30 * 24 * time.Hour
	staleActivity  = 180 * 24 * time.Hour
)

// Demographics section of a helper representation.
type Demographics struct {
	Age         int    `json:"age"`
	AgeKnown    bool   `json:"age-known"`
	Nationality string `json:"nationality,omitempty"`
	Religion    string `json:"religion,omitempty"`
}

// Experience section of a helper representation.
type Experience struct {
	TotalYears     float64            `json:"total-years"`
	Competency     map[string]float64 `json:"competency,omitempty"`
	Skills         []string           `json:"skills,omitempty"`
	SkillDiversity int                `json:"skill-diversity"`
}

// Languages section of a helper representation.
type Languages struct {
	Set   []string `json:"set,omitempty"`
	Count int      `json:"count"`
}

// Composite section of a helper representation.
type Composite struct {
	OverallQualityScore float64 `json:"overall-quality-score"`
	Verified            bool    `json:"verified"`
	ProfileCompleteness float64 `json:"profile-completeness"`
	ResponseRate        float64 `json:"response-rate"`
}

// HelperFeatures is the extracted representation of a helper.
type HelperFeatures struct {
	HelperID     string        `json:"helper-id"`
	Demographics *Demographics `json:"demographics,omitempty"`
	Experience   *Experience   `json:"experience,omitempty"`
	Languages    *Languages    `json:"languages,omitempty"`
	Composite    *Composite    `json:"composite,omitempty"`

	// DataCompleteness is the fraction of optional source fields that were present.
	DataCompleteness float64 `json:"-"`
	// Missing names the optional source fields that were absent.
	Missing []string `json:"-"`
}

// JobFeatures is the extracted representation of a job.
type JobFeatures struct {
	JobID              string             `json:"job-id"`
	EmployerID         string             `json:"employer-id"`
	RequiredSkills     []string           `json:"required-skills,omitempty"`
	PreferredSkills    []string           `json:"preferred-skills,omitempty"`
	SkillWeights       map[string]float64 `json:"skill-weights,omitempty"`
	AgeMin             int                `json:"age-min,omitempty"`
	AgeMax             int                `json:"age-max,omitempty"`
	Nationalities      []string           `json:"nationalities,omitempty"`
	Languages          []string           `json:"languages,omitempty"`
	MinExperienceYears float64            `json:"min-experience-years,omitempty"`
	Salary             float64            `json:"salary,omitempty"`
	Urgency            string             `json:"urgency,omitempty"`
}

// HasAgePreference reports whether the job states any age bound.
func (j JobFeatures) HasAgePreference() bool {
	return j.AgeMin > 0 || j.AgeMax > 0
}

// ExtractJobFeatures normalizes a job record.
func ExtractJobFeatures(job records.JobRecord) JobFeatures {
	f := JobFeatures{
		JobID:              job.ID,
		EmployerID:         job.EmployerID,
		SkillWeights:       make(map[string]float64),
		AgeMin:             clampInt(job.Preferences.Age.Min, 0, maxAge),
		AgeMax:             clampInt(job.Preferences.Age.Max, 0, maxAge),
		Nationalities:      normalizeSet(job.Preferences.Nationalities, normalizeKey),
		Languages:          normalizeSet(job.Preferences.Languages, normalizeKey),
		MinExperienceYears: clamp(job.MinExperienceYears, 0, maxExperienceYears),
		Salary:             math.Max(job.Compensation.Salary, 0),
		Urgency:            normalizeKey(job.Urgency),
	}

	if f.AgeMin > 0 && f.AgeMax > 0 && f.AgeMin > f.AgeMax {
		f.AgeMin, f.AgeMax = f.AgeMax, f.AgeMin
	}

	required := make(map[string]struct{})
	preferred := make(map[string]struct{})
	for name, req := range job.Requirements {
		key := CanonicalSkill(name)
		if key == "" {
			continue
		}
		if w := req.Importance.Weight(); w > f.SkillWeights[key] {
			f.SkillWeights[key] = w
		}
		if req.Required {
			required[key] = struct{}{}
		} else {
			preferred[key] = struct{}{}
		}
	}

	// Household conditions and the description imply low-importance skills.
	implied := SkillsFromText(job.Title + " " + job.Description)
	if job.Household.HasChildren {
		implied = append(implied, SkillChildcare)
	}
	if job.Household.HasElderly {
		implied = append(implied, SkillElderlyCare)
	}
	if job.Household.HasPets {
		implied = append(implied, SkillPetCare)
	}
	for _, key := range implied {
		if _, ok := f.SkillWeights[key]; ok {
			continue
		}
		f.SkillWeights[key] = records.ImportanceLow.Weight()
		preferred[key] = struct{}{}
	}

	for key := range required {
		delete(preferred, key)
	}

	f.RequiredSkills = sortedKeys(required)
	f.PreferredSkills = sortedKeys(preferred)

	return f
}

// ExtractHelperFeatures normalizes a helper record. Age and activity recency
// are measured against ref, never against the wall clock.
func ExtractHelperFeatures(helper records.HelperRecord, ref time.Time) HelperFeatures {
	var missing []string

	demographics := &Demographics{
		Nationality: normalizeKey(helper.Nationality),
		Religion:    normalizeKey(helper.Religion),
	}
	if helper.DateOfBirth != nil {
		demographics.Age = clampInt(yearsBetween(*helper.DateOfBirth, ref), 0, maxAge)
		demographics.AgeKnown = true
	} else {
		missing = append(missing, "date-of-birth")
	}
	if demographics.Nationality == "" {
		missing = append(missing, "nationality")
	}
	if demographics.Religion == "" {
		missing = append(missing, "religion")
	}

	experience := &Experience{Competency: make(map[string]float64)}
	skills := make(map[string]struct{})
	// Sorted iteration keeps the float sum reproducible.
	for _, category := range sortedKeys(keySet(helper.Experience)) {
		years := helper.Experience[category]
		key := CanonicalSkill(category)
		if key == "" {
			continue
		}
		years = clamp(years, 0, maxExperienceYears)
		experience.TotalYears += years
		competency := clamp(years/fullCompetencyYears, 0, 1)
		if competency > experience.Competency[key] {
			experience.Competency[key] = competency
		}
		if years > 0 {
			skills[key] = struct{}{}
		}
	}
	experience.TotalYears = clamp(experience.TotalYears, 0, maxExperienceYears)
	if len(helper.Experience) == 0 {
		missing = append(missing, "experience")
	}

	for _, skill := range helper.Skills {
		if key := CanonicalSkill(skill); key != "" {
			skills[key] = struct{}{}
		}
	}
	for _, skill := range SkillsFromText(helper.SkillsText) {
		skills[skill] = struct{}{}
	}
	if len(helper.Skills) == 0 && strings.TrimSpace(helper.SkillsText) == "" {
		missing = append(missing, "skills")
	}
	experience.Skills = sortedKeys(skills)
	experience.SkillDiversity = len(experience.Skills)

	languages := &Languages{Set: normalizeSet(helper.Languages, normalizeKey)}
	languages.Count = len(languages.Set)
	if languages.Count == 0 {
		missing = append(missing, "languages")
	}

	if helper.LastActiveAt == nil {
		missing = append(missing, "last-active-at")
	}

	composite := &Composite{
		Verified:            helper.IsVerified,
		ProfileCompleteness: clamp(helper.ProfileCompleteness/100, 0, 1),
		ResponseRate:        clamp(helper.ResponseRate, 0, 1),
	}
	composite.OverallQualityScore = qualityScore(composite, experience.TotalYears, recency(helper.LastActiveAt, ref))

	return HelperFeatures{
		HelperID:         helper.ID,
		Demographics:     demographics,
		Experience:       experience,
		Languages:        languages,
		Composite:        composite,
		DataCompleteness: float64(optionalFields-len(missing)) / optionalFields,
		Missing:          missing,
	}
}

const optionalFields = 7

func qualityScore(c *Composite, totalYears, recency float64) float64 {
	verified := 0.0
	if c.Verified {
		verified = 1
	}

	score := 0.30*c.ProfileCompleteness +
		0.20*verified +
		0.20*c.ResponseRate +
		0.15*clamp(totalYears/seniorYears, 0, 1) +
		0.15*recency

	return clamp(score, 0, 1)
}

// recency is 1 for activity within the last month, fading to 0 after six months.
func recency(lastActive *time.Time, ref time.Time) float64 {
	if lastActive == nil {
		return 0
	}
	elapsed := ref.Sub(*lastActive)
	switch {
	case elapsed <= recentActivity:
		return 1
	case elapsed >= staleActivity:
		return 0
	default:
		return 1 - float64(elapsed-recentActivity)/float64(staleActivity-recentActivity)
	}
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}

func keySet[V any](m map[string]V) map[string]struct{} {
	set := make(map[string]struct{}, len(m))
	for k := range m {
		set[k] = struct{}{}
	}
	return set
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
