package features

import (
	"reflect"
	"testing"
	"time"

	"github.com/spigell/helper-matcher/internal/records"
)

var ref = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func dob(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func fullHelper() records.HelperRecord {
	lastActive := ref.Add(-48 * time.Hour)
	return records.HelperRecord{
		ID:                     "h1",
		DateOfBirth:            dob(1995, 6, 2),
		Nationality:            " Filipino ",
		Religion:               "Catholic",
		SkillsText:             "<p>Experienced <b>nanny</b>, can cook and do ironing</p>",
		Skills:                 []string{"Cleaning", "elderly care"},
		Languages:              []string{"English", "Tagalog", "english"},
		Experience:             map[string]float64{"childcare": 4, "cooking": 8},
		IsVerified:             true,
		IsActive:               true,
		IsRegistrationComplete: true,
		ProfileCompleteness:    90,
		LastActiveAt:           &lastActive,
		ResponseRate:           0.8,
	}
}

func TestExtractHelperFeatures(t *testing.T) {
	f := ExtractHelperFeatures(fullHelper(), ref)

	if !f.Demographics.AgeKnown || f.Demographics.Age != 29 {
		t.Fatalf("expected age 29 one day before the birthday, got %+v", f.Demographics)
	}

	if f.Demographics.Nationality != "filipino" {
		t.Fatalf("expected normalized nationality, got %q", f.Demographics.Nationality)
	}

	expectSkills := []string{SkillChildcare, SkillCleaning, SkillCooking, SkillElderlyCare, SkillLaundry}
	if !reflect.DeepEqual(f.Experience.Skills, expectSkills) {
		t.Fatalf("expected skills %v, got %v", expectSkills, f.Experience.Skills)
	}

	if f.Experience.TotalYears != 12 || f.Experience.Competency[SkillCooking] != 1 || f.Experience.Competency[SkillChildcare] != 0.8 {
		t.Fatalf("unexpected experience section: %+v", f.Experience)
	}

	if f.Languages.Count != 2 {
		t.Fatalf("expected duplicate languages to collapse, got %v", f.Languages.Set)
	}

	if f.DataCompleteness != 1 || len(f.Missing) != 0 {
		t.Fatalf("expected a complete record, missing %v", f.Missing)
	}

	q := f.Composite.OverallQualityScore
	if q <= 0.8 || q > 1 {
		t.Fatalf("expected a high quality score, got %v", q)
	}
}

func TestExtractHelperFeaturesIsTotal(t *testing.T) {
	t.Parallel()

	future := ref.Add(24 * time.Hour)

	tests := []struct {
		name   string
		helper records.HelperRecord
	}{
		{name: "empty record", helper: records.HelperRecord{}},
		{name: "only id", helper: records.HelperRecord{ID: "h2"}},
		{name: "birth date in the future", helper: records.HelperRecord{ID: "h3", DateOfBirth: &future}},
		{name: "ancient birth date", helper: records.HelperRecord{ID: "h4", DateOfBirth: dob(1700, 1, 1)}},
		{name: "out of range numbers", helper: records.HelperRecord{ID: "h5", ProfileCompleteness: 400, ResponseRate: -3, Experience: map[string]float64{"cooking": 500}}},
		{name: "markup only skills", helper: records.HelperRecord{ID: "h6", SkillsText: "<script>alert(1)</script>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := ExtractHelperFeatures(tt.helper, ref)
			if f.Demographics == nil || f.Experience == nil || f.Languages == nil || f.Composite == nil {
				t.Fatalf("expected every section to be present: %+v", f)
			}

			if q := f.Composite.OverallQualityScore; q < 0 || q > 1 {
				t.Fatalf("quality score %v is outside [0, 1]", q)
			}

			if f.Demographics.Age < 0 || f.Demographics.Age > maxAge {
				t.Fatalf("age %d is outside the declared domain", f.Demographics.Age)
			}

			if f.DataCompleteness < 0 || f.DataCompleteness > 1 {
				t.Fatalf("completeness %v is outside [0, 1]", f.DataCompleteness)
			}
		})
	}
}

func TestExtractHelperFeaturesIsStable(t *testing.T) {
	helper := fullHelper()
	first := ExtractHelperFeatures(helper, ref)
	second := ExtractHelperFeatures(helper, ref)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestExtractJobFeatures(t *testing.T) {
	job := records.JobRecord{
		ID:          "j1",
		EmployerID:  "e1",
		Title:       "Helper for family",
		Description: "We need someone for <i>gardening</i> on weekends",
		Requirements: map[string]records.SkillRequirement{
			"Cooking":     {Required: true, Importance: records.ImportanceHigh},
			"child care":  {Required: false, Importance: records.ImportanceMedium},
			"babysitting": {Required: true, Importance: records.ImportanceLow},
		},
		Preferences: records.JobPreferences{
			Age:           records.AgeRange{Min: 40, Max: 25},
			Nationalities: []string{"Filipino", "filipino "},
		},
		Household: records.Household{HasPets: true},
	}

	f := ExtractJobFeatures(job)

	if f.AgeMin != 25 || f.AgeMax != 40 {
		t.Fatalf("expected inverted age band to be swapped, got %d-%d", f.AgeMin, f.AgeMax)
	}

	if !reflect.DeepEqual(f.RequiredSkills, []string{SkillChildcare, SkillCooking}) {
		t.Fatalf("unexpected required skills %v", f.RequiredSkills)
	}

	if !reflect.DeepEqual(f.PreferredSkills, []string{SkillGardening, SkillPetCare}) {
		t.Fatalf("unexpected preferred skills %v", f.PreferredSkills)
	}

	if f.SkillWeights[SkillChildcare] != records.ImportanceMedium.Weight() {
		t.Fatalf("expected the highest importance to win for merged synonyms, got %v", f.SkillWeights[SkillChildcare])
	}

	if len(f.Nationalities) != 1 || f.Nationalities[0] != "filipino" {
		t.Fatalf("unexpected nationalities %v", f.Nationalities)
	}
}

func TestValidationPredicate(t *testing.T) {
	t.Parallel()

	valid := func() *Vector {
		return NewVector(ExtractHelperFeatures(fullHelper(), ref), "hash", ref)
	}

	tests := []struct {
		name   string
		mutate func(v *Vector)
		expect bool
	}{
		{name: "freshly computed", mutate: func(*Vector) {}, expect: true},
		{name: "missing demographics", mutate: func(v *Vector) { v.Demographics = nil }},
		{name: "missing languages", mutate: func(v *Vector) { v.Languages = nil }},
		{name: "missing composite", mutate: func(v *Vector) { v.Composite = nil }},
		{name: "undefined completeness", mutate: func(v *Vector) { v.Meta.Completeness = nil }},
		{name: "quality above one", mutate: func(v *Vector) { v.Composite.OverallQualityScore = 1.2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := valid()
			tt.mutate(v)
			if got := Valid(v); got != tt.expect {
				t.Fatalf("expected valid=%v, got %v (%v)", tt.expect, got, Problems(v))
			}
		})
	}

	if Valid(nil) {
		t.Fatalf("expected nil vector to be invalid")
	}
}

func TestSourceHash(t *testing.T) {
	helper := fullHelper()
	first, err := SourceHash(helper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, _ := SourceHash(fullHelper())
	if first != second {
		t.Fatalf("expected equal records to hash equally")
	}

	helper.Nationality = "Indonesian"
	changed, _ := SourceHash(helper)
	if changed == first {
		t.Fatalf("expected a changed record to change the hash")
	}
}
