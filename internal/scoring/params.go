package scoring

import (
	"github.com/spigell/helper-matcher/internal/features"
)

// Dimension names a weighted sub-score.
type Dimension string

const (
	DimSkills      Dimension = "skills"
	DimAge         Dimension = "age"
	DimNationality Dimension = "nationality"
	DimLanguage    Dimension = "language"
	DimExperience  Dimension = "experience"
	DimTrust       Dimension = "trust"
)

// Dimensions lists every sub-score in evaluation order.
var Dimensions = []Dimension{DimSkills, DimAge, DimNationality, DimLanguage, DimExperience, DimTrust}

// Weights of each sub-score. They are normalized by their sum when scoring.
type Weights struct {
	Skills      float64 `mapstructure:"skills" json:"skills"`
	Age         float64 `mapstructure:"age" json:"age"`
	Nationality float64 `mapstructure:"nationality" json:"nationality"`
	Language    float64 `mapstructure:"language" json:"language"`
	Experience  float64 `mapstructure:"experience" json:"experience"`
	Trust       float64 `mapstructure:"trust" json:"trust"`
}

// Get returns the weight of a dimension.
func (w Weights) Get(d Dimension) float64 {
	switch d {
	case DimSkills:
		return w.Skills
	case DimAge:
		return w.Age
	case DimNationality:
		return w.Nationality
	case DimLanguage:
		return w.Language
	case DimExperience:
		return w.Experience
	case DimTrust:
		return w.Trust
	default:
		return 0
	}
}

// With returns a copy with one dimension replaced.
func (w Weights) With(d Dimension, v float64) Weights {
	switch d {
	case DimSkills:
		w.Skills = v
	case DimAge:
		w.Age = v
	case DimNationality:
		w.Nationality = v
	case DimLanguage:
		w.Language = v
	case DimExperience:
		w.Experience = v
	case DimTrust:
		w.Trust = v
	}
	return w
}

// Config holds the process-wide scoring defaults. It is read-only once built.
type Config struct {
	Weights                Weights `mapstructure:"weights"`
	AgeTolerance           float64 `mapstructure:"age-tolerance"`
	DefaultExperienceYears float64 `mapstructure:"default-experience-years"`
}

// DefaultConfig returns the fixed default weights and tolerances.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Skills:      0.35,
			Age:         0.15,
			Nationality: 0.15,
			Language:    0.10,
			Experience:  0.15,
			Trust:       0.10,
		},
		AgeTolerance:           5,
		DefaultExperienceYears: 2,
	}
}

// RuleSet overrides scoring parameters for a single employer. Every non-nil
// field replaces the default outright.
type RuleSet struct {
	EmployerID string `json:"employer-id"`

	Weights                  map[Dimension]float64 `json:"weights,omitempty"`
	AgeMin                   *int                  `json:"age-min,omitempty"`
	AgeMax                   *int                  `json:"age-max,omitempty"`
	AgeTolerance             *float64              `json:"age-tolerance,omitempty"`
	NationalityMismatchScore *float64              `json:"nationality-mismatch-score,omitempty"`
	SkillCompensationBonus   *float64              `json:"skill-compensation-bonus,omitempty"`
	CompensationMinYears     *float64              `json:"compensation-min-years,omitempty"`
}

// Params are the fully resolved parameters used to score one job.
type Params struct {
	Weights                  Weights
	AgeMin                   int
	AgeMax                   int
	AgeTolerance             float64
	NationalityMismatchScore float64
	SkillCompensationBonus   float64
	CompensationMinYears     float64
	MinExperienceYears       float64
}

// Resolve merges defaults, the job's stated preferences and optional rules.
func (c Config) Resolve(job features.JobFeatures, rules *RuleSet) Params {
	p := Params{
		Weights:            c.Weights,
		AgeMin:             job.AgeMin,
		AgeMax:             job.AgeMax,
		AgeTolerance:       c.AgeTolerance,
		MinExperienceYears: job.MinExperienceYears,
	}
	if p.MinExperienceYears <= 0 {
		p.MinExperienceYears = c.DefaultExperienceYears
	}

	if rules == nil {
		return p
	}

	for _, d := range Dimensions {
		if v, ok := rules.Weights[d]; ok {
			p.Weights = p.Weights.With(d, v)
		}
	}
	if rules.AgeMin != nil {
		p.AgeMin = *rules.AgeMin
	}
	if rules.AgeMax != nil {
		p.AgeMax = *rules.AgeMax
	}
	if rules.AgeTolerance != nil {
		p.AgeTolerance = *rules.AgeTolerance
	}
	if rules.NationalityMismatchScore != nil {
		p.NationalityMismatchScore = *rules.NationalityMismatchScore
	}
	if rules.SkillCompensationBonus != nil {
		p.SkillCompensationBonus = *rules.SkillCompensationBonus
	}
	if rules.CompensationMinYears != nil {
		p.CompensationMinYears = *rules.CompensationMinYears
	}

	return p
}
