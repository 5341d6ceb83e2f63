package scoring

import (
	"reflect"
	"testing"
	"time"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
)

var ref = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func born(age int) *time.Time {
	t := ref.AddDate(-age, -1, 0)
	return &t
}

func filipinoJob() features.JobFeatures {
	return features.ExtractJobFeatures(records.JobRecord{
		ID:         "j1",
		EmployerID: "e1",
		Requirements: map[string]records.SkillRequirement{
			"cooking": {Required: true, Importance: records.ImportanceHigh},
		},
		Preferences: records.JobPreferences{
			Age:           records.AgeRange{Max: 35},
			Nationalities: []string{"Filipino"},
		},
	})
}

func helperA() features.HelperFeatures {
	return features.ExtractHelperFeatures(records.HelperRecord{
		ID:                  "a",
		DateOfBirth:         born(30),
		Nationality:         "Filipino",
		Skills:              []string{"cooking"},
		Experience:          map[string]float64{"cooking": 4},
		IsVerified:          true,
		ProfileCompleteness: 80,
	}, ref)
}

func helperB() features.HelperFeatures {
	return features.ExtractHelperFeatures(records.HelperRecord{
		ID:                  "b",
		DateOfBirth:         born(45),
		Nationality:         "Myanmar",
		Skills:              []string{"cooking"},
		Experience:          map[string]float64{"cooking": 6},
		ProfileCompleteness: 80,
	}, ref)
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	scorer := New(DefaultConfig())
	negative := -3.0
	huge := 40.0

	tests := []struct {
		name   string
		job    features.JobFeatures
		helper features.HelperFeatures
		rules  *RuleSet
	}{
		{name: "empty job and helper", job: features.JobFeatures{}, helper: features.HelperFeatures{}},
		{name: "helper without sections", job: filipinoJob(), helper: features.HelperFeatures{HelperID: "x"}},
		{name: "preferred match", job: filipinoJob(), helper: helperA()},
		{name: "outside preferences", job: filipinoJob(), helper: helperB()},
		{name: "zero weights", job: filipinoJob(), helper: helperA(), rules: &RuleSet{Weights: map[Dimension]float64{
			DimSkills: 0, DimAge: 0, DimNationality: 0, DimLanguage: 0, DimExperience: 0, DimTrust: 0,
		}}},
		{name: "hostile overrides", job: filipinoJob(), helper: helperB(), rules: &RuleSet{
			AgeTolerance:             &negative,
			NationalityMismatchScore: &huge,
			SkillCompensationBonus:   &huge,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := scorer.Score(tt.job, tt.helper, tt.rules)
			if res.Similarity < 0 || res.Similarity > 1 {
				t.Fatalf("similarity %v is outside [0, 1]", res.Similarity)
			}
			for d, v := range res.Breakdown {
				if v < 0 || v > 1 {
					t.Fatalf("%s sub-score %v is outside [0, 1]", d, v)
				}
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := New(DefaultConfig())
	tolerance := 9.0
	rules := &RuleSet{AgeTolerance: &tolerance}

	first := scorer.Score(filipinoJob(), helperB(), rules)
	second := scorer.Score(filipinoJob(), helperB(), rules)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestDefaultRulesPreferStatedProfile(t *testing.T) {
	scorer := New(DefaultConfig())

	a := scorer.Score(filipinoJob(), helperA(), nil)
	b := scorer.Score(filipinoJob(), helperB(), nil)

	if a.Similarity <= b.Similarity {
		t.Fatalf("expected helper a (%v) to outscore helper b (%v)", a.Similarity, b.Similarity)
	}

	if b.Breakdown[DimAge] != 0 || b.Breakdown[DimNationality] != 0 {
		t.Fatalf("expected helper b to fail age and nationality, got %v", b.Breakdown)
	}

	expect := []string{
		"Has 1 of 1 requested skills (cooking)",
		"Age 30 within preferred range up to 35",
		"Nationality matches preference (filipino)",
		"4.0 years of experience",
		"Verified profile",
	}
	if !reflect.DeepEqual(a.Reasons, expect) {
		t.Fatalf("unexpected reasons:\n%v\nexpected:\n%v", a.Reasons, expect)
	}
}

func TestRulesReplaceFieldsOutright(t *testing.T) {
	cfg := DefaultConfig()
	job := filipinoJob()

	ageMax := 50
	mismatch := 0.8
	rules := &RuleSet{
		AgeMax:                   &ageMax,
		NationalityMismatchScore: &mismatch,
		Weights:                  map[Dimension]float64{DimAge: 0.4},
	}

	p := cfg.Resolve(job, rules)
	if p.AgeMax != 50 || p.NationalityMismatchScore != 0.8 {
		t.Fatalf("expected overrides to replace defaults, got %+v", p)
	}
	if p.Weights.Age != 0.4 || p.Weights.Skills != cfg.Weights.Skills {
		t.Fatalf("expected only the age weight to change, got %+v", p.Weights)
	}
	if p.AgeTolerance != cfg.AgeTolerance {
		t.Fatalf("expected unset fields to keep defaults, got %v", p.AgeTolerance)
	}

	res := ScoreWith(p, job, helperB())
	if res.Breakdown[DimAge] != 1 || res.Breakdown[DimNationality] != 0.8 {
		t.Fatalf("unexpected breakdown under rules: %v", res.Breakdown)
	}
}

func TestSkillCompensation(t *testing.T) {
	job := features.ExtractJobFeatures(records.JobRecord{
		ID: "j2",
		Requirements: map[string]records.SkillRequirement{
			"cooking":   {Required: true, Importance: records.ImportanceHigh},
			"childcare": {Required: true, Importance: records.ImportanceHigh},
		},
	})
	helper := features.ExtractHelperFeatures(records.HelperRecord{
		ID:         "c",
		Experience: map[string]float64{"cooking": 9},
	}, ref)

	scorer := New(DefaultConfig())
	base := scorer.Score(job, helper, nil)
	if base.Breakdown[DimSkills] != 0.5 {
		t.Fatalf("expected half of the skills to match, got %v", base.Breakdown[DimSkills])
	}

	bonus, minYears := 0.5, 5.0
	rules := &RuleSet{SkillCompensationBonus: &bonus, CompensationMinYears: &minYears}
	compensated := scorer.Score(job, helper, rules)
	if compensated.Breakdown[DimSkills] != 0.75 {
		t.Fatalf("expected compensation bonus to apply, got %v", compensated.Breakdown[DimSkills])
	}

	minYears = 10
	if res := scorer.Score(job, helper, rules); res.Breakdown[DimSkills] != 0.5 {
		t.Fatalf("expected no bonus below the experience threshold, got %v", res.Breakdown[DimSkills])
	}
}

func TestRankTieBreak(t *testing.T) {
	matches := []Match{
		{HelperID: "c", Similarity: 0.7, ProfileCompleteness: 0.5},
		{HelperID: "b", Similarity: 0.9, ProfileCompleteness: 0.5},
		{HelperID: "a", Similarity: 0.7, ProfileCompleteness: 0.5},
		{HelperID: "d", Similarity: 0.7, ProfileCompleteness: 0.9},
	}

	Rank(matches)

	order := make([]string, 0, len(matches))
	for _, m := range matches {
		order = append(order, m.HelperID)
	}

	if !reflect.DeepEqual(order, []string{"b", "d", "a", "c"}) {
		t.Fatalf("unexpected order %v", order)
	}
}
