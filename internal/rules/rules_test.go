package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/spigell/helper-matcher/internal/apperr"
	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/flexibility"
	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/scoring"
	"github.com/spigell/helper-matcher/internal/store"
	"github.com/spigell/helper-matcher/internal/store/memory"
)

var ref = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func born(age int) *time.Time {
	t := ref.AddDate(-age, -1, 0)
	return &t
}

func filipinoJob() records.JobRecord {
	return records.JobRecord{
		ID:         "j1",
		EmployerID: "e1",
		Requirements: map[string]records.SkillRequirement{
			"cooking": {Required: true, Importance: records.ImportanceHigh},
		},
		Preferences: records.JobPreferences{
			Age:           records.AgeRange{Max: 35},
			Nationalities: []string{"Filipino"},
		},
	}
}

func seedHistory(t *testing.T, s store.DecisionStore) {
	t.Helper()

	hires := []struct {
		age         int
		nationality string
	}{
		{41, "Myanmar"},
		{43, "Indonesian"},
		{45, "Myanmar"},
		{44, "Sri Lankan"},
	}
	for i, h := range hires {
		err := s.AppendDecision(context.Background(), records.Decision{
			ID:           fmt.Sprintf("d%d", i),
			ActingUserID: "e1",
			HelperID:     fmt.Sprintf("past-%d", i),
			JobID:        "old-job",
			Action:       records.ActionHired,
			Timestamp:    ref.Add(-time.Duration(i+1) * 24 * time.Hour),
			Snapshot: records.Snapshot{
				HelperAge:         h.age,
				HelperNationality: h.nationality,
				HelperSkills:      []string{"cooking"},
				JobAge:            records.AgeRange{Max: 35},
				JobNationalities:  []string{"Filipino"},
				JobRequiredSkills: []string{"cooking"},
			},
		})
		if err != nil {
			t.Fatalf("seeding history: %v", err)
		}
	}
}

func TestGeneratedRulesFavourObservedBehaviour(t *testing.T) {
	ctx := context.Background()
	decisions := memory.New()
	seedHistory(t, decisions)

	scoringCfg := scoring.DefaultConfig()
	scorer := scoring.New(scoringCfg)
	generator := NewGenerator(decisions, scoringCfg, DefaultConfig(), nil)

	job := filipinoJob()
	jobFeatures := features.ExtractJobFeatures(job)
	helperA := features.ExtractHelperFeatures(records.HelperRecord{
		ID: "a", DateOfBirth: born(30), Nationality: "Filipino", Skills: []string{"cooking"},
		Experience: map[string]float64{"cooking": 4}, IsVerified: true, ProfileCompleteness: 80,
	}, ref)
	helperB := features.ExtractHelperFeatures(records.HelperRecord{
		ID: "b", DateOfBirth: born(45), Nationality: "Myanmar", Skills: []string{"cooking"},
		Experience: map[string]float64{"cooking": 6}, ProfileCompleteness: 80,
	}, ref)

	defaultA := scorer.Score(jobFeatures, helperA, nil)
	defaultB := scorer.Score(jobFeatures, helperB, nil)
	if defaultA.Similarity <= defaultB.Similarity {
		t.Fatalf("expected helper a (%v) to outscore helper b (%v) by default", defaultA.Similarity, defaultB.Similarity)
	}

	rules, profile, err := generator.GenerateRules(ctx, job, "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profile.AgeFlexibility <= 0.5 || profile.NationalityFlexibility <= 0.5 {
		t.Fatalf("expected a flexible profile, got %+v", profile)
	}

	if rules.AgeMax == nil || *rules.AgeMax <= 35 {
		t.Fatalf("expected the age band to widen, got %v", rules.AgeMax)
	}

	dynamicB := scorer.Score(jobFeatures, helperB, rules)
	if dynamicB.Similarity <= defaultB.Similarity {
		t.Fatalf("expected helper b to gain under generated rules: default %v, dynamic %v", defaultB.Similarity, dynamicB.Similarity)
	}
}

func TestGenerateRulesIsReproducible(t *testing.T) {
	ctx := context.Background()
	decisions := memory.New()
	seedHistory(t, decisions)

	generator := NewGenerator(decisions, scoring.DefaultConfig(), DefaultConfig(), nil)

	first, _, err := generator.GenerateRules(ctx, filipinoJob(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, _ := generator.GenerateRules(ctx, filipinoJob(), "e1")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical rule sets, got %+v and %+v", first, second)
	}
}

func TestDeriveFromNeutralProfile(t *testing.T) {
	defaults := scoring.DefaultConfig()
	job := features.ExtractJobFeatures(records.JobRecord{
		ID:          "j2",
		Preferences: records.JobPreferences{Age: records.AgeRange{Min: 30, Max: 40}},
	})

	rules := Derive(job, flexibility.NeutralProfile(), defaults, DefaultConfig())

	if *rules.AgeMax != 45 || *rules.AgeMin != 25 {
		t.Fatalf("expected the band to widen by half the cap, got %d-%d", *rules.AgeMin, *rules.AgeMax)
	}
	if *rules.AgeTolerance != defaults.AgeTolerance {
		t.Fatalf("expected neutral tolerance to stay at the default, got %v", *rules.AgeTolerance)
	}
	if rules.NationalityMismatchScore != nil || rules.SkillCompensationBonus != nil {
		t.Fatalf("expected no overrides for unstated preferences, got %+v", rules)
	}
	if _, ok := rules.Weights[scoring.DimNationality]; ok {
		t.Fatalf("expected nationality weight to stay at the default")
	}
}

type failingDecisions struct {
	store.DecisionStore
}

func (failingDecisions) RecentByUser(context.Context, string, int) ([]records.Decision, error) {
	return nil, errors.New("connection reset")
}

func TestGenerateRulesSurfacesStoreFailure(t *testing.T) {
	generator := NewGenerator(failingDecisions{}, scoring.DefaultConfig(), DefaultConfig(), nil)

	_, _, err := generator.GenerateRules(context.Background(), filipinoJob(), "e1")
	if !apperr.Is(err, codes.Unavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}
