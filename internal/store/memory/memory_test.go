package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spigell/helper-matcher/internal/records"
	"github.com/spigell/helper-matcher/internal/store"
)

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{
  "jobs": [{"id": "j1", "employer-id": "e1", "preferences": {"age": {"max": 35}}}],
  "helpers": [
    {"id": "h2", "is-active": true, "is-registration-complete": true},
    {"id": "h1", "is-active": true, "is-registration-complete": true, "date-of-birth": "1990-01-01T00:00:00Z"},
    {"id": "h3", "is-active": true, "is-registration-complete": false}
  ]
}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	job, err := s.GetJob(ctx, "j1")
	if err != nil || job.Preferences.Age.Max != 35 {
		t.Fatalf("unexpected job %+v (%v)", job, err)
	}

	helpers, _ := s.QueryActiveRegisteredHelpers(ctx, 0)
	if len(helpers) != 2 || helpers[0].ID != "h1" || helpers[1].ID != "h2" {
		t.Fatalf("expected eligible helpers ordered by id, got %+v", helpers)
	}

	limited, _ := s.QueryActiveRegisteredHelpers(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	if _, err := s.GetHelper(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecisionQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, user := range []string{"u1", "u2", "u1", "u3", "u1"} {
		_ = s.AppendDecision(ctx, records.Decision{
			ID:           string(rune('a' + i)),
			ActingUserID: user,
			Action:       records.ActionViewed,
			Timestamp:    base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}

	recent, _ := s.RecentByUser(ctx, "u1", 2)
	if len(recent) != 2 || recent[0].ID != "e" || recent[1].ID != "c" {
		t.Fatalf("expected newest decisions first, got %+v", recent)
	}

	users, _ := s.DistinctUsersSince(ctx, base.Add(24*time.Hour))
	if !reflect.DeepEqual(users, []string{"u1", "u2", "u3"}) {
		t.Fatalf("unexpected users %v", users)
	}

	users, _ = s.DistinctUsersSince(ctx, base.Add(4*24*time.Hour))
	if !reflect.DeepEqual(users, []string{"u1"}) {
		t.Fatalf("unexpected users %v", users)
	}
}

func TestLoadYAMLSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `
helpers:
  - id: h1
    is-active: true
    is-registration-complete: true
    languages: [English, Tagalog]
    experience:
      cooking: 3
decisions:
  - id: d1
    acting-user-id: u1
    helper-id: h1
    job-id: j1
    action: hired
    timestamp: "2025-05-01T10:00:00Z"
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	helper, err := s.GetHelper(ctx, "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(helper.Languages, []string{"English", "Tagalog"}) {
		t.Fatalf("unexpected languages %q", helper.Languages)
	}
	if helper.Experience["cooking"] != 3 {
		t.Fatalf("unexpected experience %v", helper.Experience)
	}

	decisions, err := s.RecentByUser(ctx, "u1", 0)
	if err != nil || len(decisions) != 1 || decisions[0].Action != records.ActionHired {
		t.Fatalf("unexpected decisions %+v (%v)", decisions, err)
	}
	if !decisions[0].Timestamp.Equal(time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", decisions[0].Timestamp)
	}
}

func TestParseSeedAssignsDecisionIDs(t *testing.T) {
	t.Parallel()

	seed, err := ParseSeed([]byte(`{"decisions": [
  {"acting-user-id": "u1", "helper-id": "h1", "job-id": "j1", "action": "viewed"},
  {"acting-user-id": "u1", "helper-id": "h2", "job-id": "j1", "action": "rejected"},
  {"id": "d3", "acting-user-id": "u1", "helper-id": "h3", "job-id": "j1", "action": "hired"}
]}`), ".json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := map[string]bool{}
	for _, d := range seed.Decisions {
		if d.ID == "" {
			t.Fatalf("expected every decision to get an id, got %+v", seed.Decisions)
		}
		ids[d.ID] = true
	}
	if len(ids) != 3 || !ids["d3"] {
		t.Fatalf("expected distinct ids with explicit ones kept, got %v", ids)
	}
}

func TestParseSeedRejectsInvalidDecisions(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown action": `{"decisions": [{"acting-user-id": "u1", "helper-id": "h1", "job-id": "j1", "action": "liked"}]}`,
		"missing user":   `{"decisions": [{"helper-id": "h1", "job-id": "j1", "action": "viewed"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseSeed([]byte(doc), ".json"); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadKeepsIDLessSeedDecisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `
decisions:
  - {acting-user-id: u1, helper-id: h1, job-id: j1, action: viewed}
  - {acting-user-id: u1, helper-id: h2, job-id: j1, action: viewed}
  - {acting-user-id: u1, helper-id: h3, job-id: j1, action: hired}
`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decisions, err := s.RecentByUser(context.Background(), "u1", 0)
	if err != nil || len(decisions) != 3 {
		t.Fatalf("expected all three decisions, got %+v (%v)", decisions, err)
	}
}
