package flexibility

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/spigell/helper-matcher/internal/records"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func decision(i int, action records.Action, age int, nationality string, skills ...string) records.Decision {
	return records.Decision{
		ID:           fmt.Sprintf("d%02d", i),
		ActingUserID: "e1",
		HelperID:     fmt.Sprintf("h%02d", i),
		JobID:        "j1",
		Action:       action,
		Timestamp:    start.Add(time.Duration(i) * time.Hour),
		Snapshot: records.Snapshot{
			HelperAge:         age,
			HelperNationality: nationality,
			HelperSkills:      skills,
			JobAge:            records.AgeRange{Min: 25, Max: 35},
			JobNationalities:  []string{"Filipino"},
			JobRequiredSkills: []string{"cooking", "childcare"},
		},
	}
}

func TestAnalyzeEmptyHistoryIsNeutral(t *testing.T) {
	t.Parallel()

	for _, history := range [][]records.Decision{nil, {}} {
		if got := Analyze(history); got != NeutralProfile() {
			t.Fatalf("expected neutral profile, got %+v", got)
		}
	}
}

func TestAnalyzeRejectionsWithoutHiresStayNeutral(t *testing.T) {
	history := []records.Decision{
		decision(1, records.ActionRejected, 30, "Filipino", "cooking", "childcare"),
		decision(2, records.ActionViewed, 50, "Myanmar"),
	}

	p := Analyze(history)
	if p.AgeFlexibility != Neutral || p.NationalityFlexibility != Neutral || p.SkillCompensation != Neutral {
		t.Fatalf("expected neutral dimensions, got %+v", p)
	}
	if p.Rejections != 1 || p.Hires != 0 {
		t.Fatalf("unexpected counters %+v", p)
	}
}

func TestAnalyzeInBandHiresAreRigid(t *testing.T) {
	history := []records.Decision{
		decision(1, records.ActionHired, 28, "Filipino", "cooking", "childcare"),
		decision(2, records.ActionHired, 31, "filipino", "cooking", "childcare"),
		decision(3, records.ActionHired, 35, "Filipino", "cooking", "child care"),
	}

	p := Analyze(history)
	if p.AgeFlexibility > 0.5 || p.NationalityFlexibility > 0.5 || p.SkillCompensation > 0.5 {
		t.Fatalf("expected rigid dimensions, got %+v", p)
	}
}

func TestAnalyzeOutOfBandHiresAreFlexible(t *testing.T) {
	mild := Analyze([]records.Decision{
		decision(1, records.ActionHired, 37, "Myanmar", "cooking"),
		decision(2, records.ActionHired, 38, "Indonesian", "cooking"),
		decision(3, records.ActionHired, 37, "Myanmar", "cooking"),
	})
	strong := Analyze([]records.Decision{
		decision(1, records.ActionHired, 44, "Myanmar"),
		decision(2, records.ActionHired, 45, "Indonesian"),
		decision(3, records.ActionHired, 45, "Myanmar"),
	})

	for name, p := range map[string]Profile{"mild": mild, "strong": strong} {
		if p.AgeFlexibility <= 0.5 || p.NationalityFlexibility <= 0.5 || p.SkillCompensation <= 0.5 {
			t.Fatalf("%s: expected flexible dimensions, got %+v", name, p)
		}
	}

	if strong.AgeFlexibility <= mild.AgeFlexibility {
		t.Fatalf("expected larger deviations to raise age flexibility: mild %v, strong %v", mild.AgeFlexibility, strong.AgeFlexibility)
	}
	if strong.SkillCompensation <= mild.SkillCompensation {
		t.Fatalf("expected more missing skills to raise compensation: mild %v, strong %v", mild.SkillCompensation, strong.SkillCompensation)
	}
}

func TestAnalyzeInBandRejectionsReduceFlexibility(t *testing.T) {
	hires := []records.Decision{
		decision(1, records.ActionHired, 42, "Myanmar", "cooking", "childcare"),
		decision(2, records.ActionHired, 43, "Myanmar", "cooking", "childcare"),
	}
	picky := append(hires,
		decision(3, records.ActionRejected, 30, "Filipino", "cooking", "childcare"),
		decision(4, records.ActionRejected, 29, "Filipino", "cooking", "childcare"),
	)

	base := Analyze(hires)
	reduced := Analyze(picky)

	if reduced.AgeFlexibility >= base.AgeFlexibility || reduced.NationalityFlexibility >= base.NationalityFlexibility {
		t.Fatalf("expected in-band rejections to reduce flexibility: base %+v, reduced %+v", base, reduced)
	}
}

func TestAnalyzeIgnoresHistoryOrder(t *testing.T) {
	history := []records.Decision{
		decision(1, records.ActionHired, 44, "Myanmar"),
		decision(2, records.ActionRejected, 30, "Filipino", "cooking", "childcare"),
		decision(3, records.ActionHired, 33, "Filipino", "cooking"),
		decision(4, records.ActionHired, 29, "Indonesian", "childcare"),
	}
	reversed := make([]records.Decision, len(history))
	for i, d := range history {
		reversed[len(history)-1-i] = d
	}

	if a, b := Analyze(history), Analyze(reversed); !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical profiles, got %+v and %+v", a, b)
	}
}
