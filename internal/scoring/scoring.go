// Package scoring computes job and helper compatibility.
package scoring

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spigell/helper-matcher/internal/features"
)

// Result of scoring a single job and helper pair.
type Result struct {
	Similarity float64               `json:"similarity"`
	Reasons    []string              `json:"reasons"`
	Breakdown  map[Dimension]float64 `json:"breakdown"`
}

// Scorer computes weighted compatibility. It holds no mutable state.
type Scorer struct {
	cfg Config
}

// New creates a scorer with the provided defaults.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the defaults the scorer was built with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score rates a helper against a job. Rules, when present, replace defaults per field.
func (s *Scorer) Score(job features.JobFeatures, helper features.HelperFeatures, rules *RuleSet) Result {
	return ScoreWith(s.cfg.Resolve(job, rules), job, helper)
}

// ScoreWith rates a helper using already resolved parameters.
func ScoreWith(p Params, job features.JobFeatures, helper features.HelperFeatures) Result {
	res := Result{Breakdown: make(map[Dimension]float64, len(Dimensions))}

	sub := map[Dimension]func() (float64, []string){
		DimSkills:      func() (float64, []string) { return skillScore(p, job, helper) },
		DimAge:         func() (float64, []string) { return ageScore(p, helper) },
		DimNationality: func() (float64, []string) { return nationalityScore(p, job, helper) },
		DimLanguage:    func() (float64, []string) { return languageScore(job, helper) },
		DimExperience:  func() (float64, []string) { return experienceScore(p, helper) },
		DimTrust:       func() (float64, []string) { return trustScore(helper) },
	}

	var weighted, total float64
	for _, d := range Dimensions {
		score, reasons := sub[d]()
		score = clamp01(score)
		w := math.Max(p.Weights.Get(d), 0)

		res.Breakdown[d] = score
		res.Reasons = append(res.Reasons, reasons...)
		weighted += w * score
		total += w
	}

	if total > 0 {
		res.Similarity = clamp01(weighted / total)
	}

	return res
}

func skillScore(p Params, job features.JobFeatures, helper features.HelperFeatures) (float64, []string) {
	requested := append(slices.Clone(job.RequiredSkills), job.PreferredSkills...)
	if len(requested) == 0 {
		return 1, nil
	}
	slices.Sort(requested)

	has := make(map[string]bool)
	if helper.Experience != nil {
		for _, skill := range helper.Experience.Skills {
			has[skill] = true
		}
	}

	var total, matched, missingRequiredWeight float64
	var matchedNames, missingRequired []string
	for _, skill := range requested {
		w, ok := job.SkillWeights[skill]
		if !ok {
			w = 2.0 / 3
		}
		total += w
		if has[skill] {
			matched += w
			matchedNames = append(matchedNames, skill)
		} else if slices.Contains(job.RequiredSkills, skill) {
			missingRequiredWeight += w
			missingRequired = append(missingRequired, skill)
		}
	}

	if total <= 0 {
		return 1, nil
	}

	score := matched / total
	var reasons []string
	if len(matchedNames) > 0 {
		reasons = append(reasons, fmt.Sprintf("Has %d of %d requested skills (%s)",
			len(matchedNames), len(requested), strings.Join(matchedNames, ", ")))
	}
	if len(missingRequired) > 0 {
		reasons = append(reasons, "Missing required skills: "+strings.Join(missingRequired, ", "))

		years := 0.0
		if helper.Experience != nil {
			years = helper.Experience.TotalYears
		}
		if p.SkillCompensationBonus > 0 && years >= p.CompensationMinYears {
			score += p.SkillCompensationBonus * missingRequiredWeight / total
			reasons = append(reasons, fmt.Sprintf("%.1f years of experience compensate for missing skills", years))
		}
	}

	return score, reasons
}

func ageScore(p Params, helper features.HelperFeatures) (float64, []string) {
	if p.AgeMin <= 0 && p.AgeMax <= 0 {
		return 1, nil
	}
	if helper.Demographics == nil || !helper.Demographics.AgeKnown {
		return 0.5, []string{"Age not provided"}
	}

	age := helper.Demographics.Age
	band := formatBand(p.AgeMin, p.AgeMax)

	distance := 0
	if p.AgeMin > 0 && age < p.AgeMin {
		distance = p.AgeMin - age
	}
	if p.AgeMax > 0 && age > p.AgeMax {
		distance = age - p.AgeMax
	}

	if distance == 0 {
		return 1, []string{fmt.Sprintf("Age %d within preferred range %s", age, band)}
	}

	reason := fmt.Sprintf("Age %d is %d years outside preferred range %s", age, distance, band)
	if p.AgeTolerance <= 0 {
		return 0, []string{reason}
	}
	return 1 - float64(distance)/p.AgeTolerance, []string{reason}
}

func nationalityScore(p Params, job features.JobFeatures, helper features.HelperFeatures) (float64, []string) {
	if len(job.Nationalities) == 0 {
		return 1, nil
	}
	if helper.Demographics == nil || helper.Demographics.Nationality == "" {
		return 0.5, []string{"Nationality not provided"}
	}

	nationality := helper.Demographics.Nationality
	if slices.Contains(job.Nationalities, nationality) {
		return 1, []string{fmt.Sprintf("Nationality matches preference (%s)", nationality)}
	}
	return p.NationalityMismatchScore, []string{fmt.Sprintf("Nationality %s differs from preference (%s)",
		nationality, strings.Join(job.Nationalities, ", "))}
}

func languageScore(job features.JobFeatures, helper features.HelperFeatures) (float64, []string) {
	if len(job.Languages) == 0 {
		return 1, nil
	}

	spoken := 0
	if helper.Languages != nil {
		for _, lang := range job.Languages {
			if slices.Contains(helper.Languages.Set, lang) {
				spoken++
			}
		}
	}

	return float64(spoken) / float64(len(job.Languages)),
		[]string{fmt.Sprintf("Speaks %d of %d requested languages", spoken, len(job.Languages))}
}

func experienceScore(p Params, helper features.HelperFeatures) (float64, []string) {
	years := 0.0
	if helper.Experience != nil {
		years = helper.Experience.TotalYears
	}

	reason := "No recorded experience"
	if years > 0 {
		reason = fmt.Sprintf("%.1f years of experience", years)
	}

	if p.MinExperienceYears <= 0 {
		return 1, []string{reason}
	}
	return years / p.MinExperienceYears, []string{reason}
}

func trustScore(helper features.HelperFeatures) (float64, []string) {
	if helper.Composite == nil {
		return 0, nil
	}

	score := 0.5 * helper.Composite.ProfileCompleteness
	if helper.Composite.Verified {
		return score + 0.5, []string{"Verified profile"}
	}
	return score, nil
}

func formatBand(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("%d-%d", lo, hi)
	case hi > 0:
		return fmt.Sprintf("up to %d", hi)
	default:
		return fmt.Sprintf("%d+", lo)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

// Match is a scored helper ready for ranking.
type Match struct {
	HelperID            string   `json:"helper-id"`
	Similarity          float64  `json:"similarity"`
	ProfileCompleteness float64  `json:"profile-completeness"`
	Reasons             []string `json:"reasons"`
}

// Rank orders matches by similarity, then profile completeness, then helper id.
func Rank(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		if c := cmp.Compare(b.ProfileCompleteness, a.ProfileCompleteness); c != 0 {
			return c
		}
		return cmp.Compare(a.HelperID, b.HelperID)
	})
}
