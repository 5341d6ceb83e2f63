package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/logger"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// EnricherConfig of the skill enricher.
type EnricherConfig struct {
	// RequestsPerMinute paces model calls. Zero disables pacing.
	RequestsPerMinute int `mapstructure:"requests-per-minute"`
	MaxLogLength      int `mapstructure:"max-log-length"`
}

// SkillEnricher asks a model for skills hidden in the free-text profile and
// merges the ones from the skill vocabulary into the helper record.
type SkillEnricher struct {
	generator Generator
	limiter   *rate.Limiter
	log       *zap.Logger
	maxLogLen int
}

// NewSkillEnricher creates an enricher on top of generator.
func NewSkillEnricher(generator Generator, provider string, cfg EnricherConfig, log *zap.Logger) *SkillEnricher {
	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &SkillEnricher{
		generator: generator,
		limiter:   limiter,
		log:       logger.WithFields(log, logger.ProviderFields(provider, generator.Model())...),
		maxLogLen: maxLogLen,
	}
}

type answer struct {
	Skills    []string `json:"skills"`
	Languages []string `json:"languages"`
}

// Enrich returns a copy of helper with inferred skills and languages added.
// Helpers without free text are returned untouched without calling the model.
func (e *SkillEnricher) Enrich(ctx context.Context, helper records.HelperRecord) (records.HelperRecord, error) {
	text := strings.TrimSpace(helper.SkillsText)
	if text == "" {
		return helper, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return helper, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	prompt := buildPrompt(text)
	log := e.log.With(zap.String(logger.FieldHelperID, helper.ID))

	log.Debug("generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return helper, err
	}

	log.Debug("generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	parsed, err := parseAnswer(raw)
	if err != nil {
		return helper, err
	}

	enriched := helper
	enriched.Skills = merge(helper.Skills, vocabularyOnly(parsed.Skills))
	enriched.Languages = merge(helper.Languages, parsed.Languages)

	log.Debug("helper enriched",
		zap.Strings("skills", enriched.Skills),
		zap.Strings("languages", enriched.Languages),
	)
	return enriched, nil
}

func buildPrompt(profile string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Skills:\n{{VOCABULARY}}\n\nProfile:\n{{PROFILE}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{VOCABULARY}}", strings.Join(features.Vocabulary(), ", "))
	return strings.ReplaceAll(prompt, "{{PROFILE}}", profile)
}

func parseAnswer(raw string) (answer, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return answer{}, errors.New("model returned an empty answer")
	}

	var a answer
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return answer{}, fmt.Errorf("parse model answer: %w", err)
	}
	return a, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// vocabularyOnly drops skills the model made up.
func vocabularyOnly(skills []string) []string {
	known := features.Vocabulary()
	result := make([]string, 0, len(skills))
	for _, skill := range skills {
		if canonical := features.CanonicalSkill(skill); slices.Contains(known, canonical) {
			result = append(result, canonical)
		}
	}
	return result
}

// merge appends new values to existing ones, skipping case-insensitive duplicates.
func merge(existing, extra []string) []string {
	result := slices.Clone(existing)
	seen := make(map[string]struct{}, len(existing)+len(extra))
	for _, v := range existing {
		seen[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	for _, v := range extra {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}
	return result
}
