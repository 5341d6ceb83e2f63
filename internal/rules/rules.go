// Package rules turns an employer's flexibility profile into scoring overrides.
package rules

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/flexibility"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/scoring"
	"github.com/spigell/helper-matcher/internal/store"
)

// Config bounds how far generated rules may move the defaults.
type Config struct {
	AgeExtensionCap      int                `mapstructure:"age-extension-cap"`
	MaxSkillBonus        float64            `mapstructure:"max-skill-bonus"`
	CompensationMinYears float64            `mapstructure:"compensation-min-years"`
	HistoryLimit         int                `mapstructure:"history-limit"`
	Flexibility          flexibility.Config `mapstructure:"flexibility"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		AgeExtensionCap:      10,
		MaxSkillBonus:        0.5,
		CompensationMinYears: 5,
		HistoryLimit:         200,
		Flexibility:          flexibility.DefaultConfig(),
	}
}

// Generator builds per-employer rule sets from decision history.
type Generator struct {
	decisions store.DecisionStore
	scoring   scoring.Config
	cfg       Config
	logger    *zap.Logger
}

// NewGenerator creates a rule generator.
func NewGenerator(decisions store.DecisionStore, scoringCfg scoring.Config, cfg Config, log *zap.Logger) *Generator {
	return &Generator{
		decisions: decisions,
		scoring:   scoringCfg,
		cfg:       cfg,
		logger:    logger.WithFields(log, zap.String("component", "rules")),
	}
}

// GenerateRules derives the rule set of an employer for a job.
func (g *Generator) GenerateRules(ctx context.Context, job records.JobRecord, employerID string) (*scoring.RuleSet, flexibility.Profile, error) {
	history, err := g.decisions.RecentByUser(ctx, employerID, g.cfg.HistoryLimit)
	if err != nil {
		return nil, flexibility.Profile{}, apperr.Unavailable(err, "loading decision history of employer %q", employerID)
	}

	profile := g.cfg.Flexibility.Analyze(history)
	rules := Derive(features.ExtractJobFeatures(job), profile, g.scoring, g.cfg)
	rules.EmployerID = employerID

	g.logger.Debug("generated rules",
		zap.String(logger.FieldEmployerID, employerID),
		zap.String(logger.FieldJobID, job.ID),
		zap.Int("history", len(history)),
		zap.Float64("age_flexibility", profile.AgeFlexibility),
		zap.Float64("nationality_flexibility", profile.NationalityFlexibility),
		zap.Float64("skill_compensation", profile.SkillCompensation),
	)

	return rules, profile, nil
}

// Derive converts a profile into overrides for a job. It is a pure function.
func Derive(job features.JobFeatures, profile flexibility.Profile, defaults scoring.Config, cfg Config) *scoring.RuleSet {
	rules := &scoring.RuleSet{Weights: make(map[scoring.Dimension]float64)}

	if job.HasAgePreference() {
		extension := int(math.Round(profile.AgeFlexibility * float64(cfg.AgeExtensionCap)))
		if job.AgeMax > 0 {
			ageMax := job.AgeMax + extension
			rules.AgeMax = &ageMax
		}
		if job.AgeMin > 0 {
			ageMin := max(job.AgeMin-extension, 0)
			rules.AgeMin = &ageMin
		}
		// A rigid employer gets a hard cutoff, a neutral one keeps the default tolerance.
		tolerance := defaults.AgeTolerance * 2 * profile.AgeFlexibility
		rules.AgeTolerance = &tolerance
		rules.Weights[scoring.DimAge] = defaults.Weights.Age * (1.5 - profile.AgeFlexibility)
	}

	if len(job.Nationalities) > 0 {
		mismatch := profile.NationalityFlexibility
		rules.NationalityMismatchScore = &mismatch
		rules.Weights[scoring.DimNationality] = defaults.Weights.Nationality * (1.5 - profile.NationalityFlexibility)
	}

	if len(job.RequiredSkills) > 0 {
		bonus := profile.SkillCompensation * cfg.MaxSkillBonus
		minYears := cfg.CompensationMinYears
		rules.SkillCompensationBonus = &bonus
		rules.CompensationMinYears = &minYears
	}

	return rules
}
