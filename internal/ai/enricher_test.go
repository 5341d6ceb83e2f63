package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spigell/helper-matcher/internal/records"
)

type stubGenerator struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

func TestSkillEnricherEnrich(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		response      string
		wantSkills    []string
		wantLanguages []string
	}{
		{
			name:          "plain json",
			response:      `{"skills": ["cooking", "Child Care", "astrology"], "languages": ["tagalog", "English"]}`,
			wantSkills:    []string{"cleaning", "cooking", "childcare"},
			wantLanguages: []string{"English", "tagalog"},
		},
		{
			name:          "fenced json",
			response:      "```json\n{\"skills\": [\"driver\"], \"languages\": []}\n```",
			wantSkills:    []string{"cleaning", "driving"},
			wantLanguages: []string{"English"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubGenerator{response: tt.response}
			e := NewSkillEnricher(stub, "stub", EnricherConfig{}, nil)

			helper := records.HelperRecord{
				ID:         "h1",
				SkillsText: "I cook Filipino food and look after toddlers.",
				Skills:     []string{"cleaning"},
				Languages:  []string{"English"},
			}

			got, err := e.Enrich(context.Background(), helper)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got.Skills, tt.wantSkills) {
				t.Fatalf("expected skills %v, got %v", tt.wantSkills, got.Skills)
			}
			if !reflect.DeepEqual(got.Languages, tt.wantLanguages) {
				t.Fatalf("expected languages %v, got %v", tt.wantLanguages, got.Languages)
			}
			if !reflect.DeepEqual(helper.Skills, []string{"cleaning"}) {
				t.Fatalf("expected the input record to stay untouched")
			}
			if !strings.Contains(stub.lastPrompt, helper.SkillsText) || !strings.Contains(stub.lastPrompt, "elderly_care") {
				t.Fatalf("expected the profile and vocabulary in the prompt, got %s", stub.lastPrompt)
			}
		})
	}
}

func TestSkillEnricherSkipsEmptyText(t *testing.T) {
	stub := &stubGenerator{}
	e := NewSkillEnricher(stub, "stub", EnricherConfig{RequestsPerMinute: 60}, nil)

	helper := records.HelperRecord{ID: "h1", SkillsText: "   "}
	got, err := e.Enrich(context.Background(), helper)
	if err != nil || stub.calls != 0 || !reflect.DeepEqual(got, helper) {
		t.Fatalf("expected no model call, got %d calls (%v)", stub.calls, err)
	}
}

func TestSkillEnricherErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "model failure", stub: &stubGenerator{err: errors.New("quota exhausted")}},
		{name: "not json", stub: &stubGenerator{response: "I think they can cook."}},
		{name: "empty answer", stub: &stubGenerator{response: "``` ```"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewSkillEnricher(tt.stub, "stub", EnricherConfig{}, nil)
			helper := records.HelperRecord{ID: "h1", SkillsText: "cooking"}

			got, err := e.Enrich(context.Background(), helper)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !reflect.DeepEqual(got, helper) {
				t.Fatalf("expected the raw record to be returned on failure")
			}
		})
	}
}

func TestSkillEnricherHonoursCancelledContext(t *testing.T) {
	stub := &stubGenerator{response: `{"skills": []}`}
	e := NewSkillEnricher(stub, "stub", EnricherConfig{RequestsPerMinute: 1}, nil)
	helper := records.HelperRecord{ID: "h1", SkillsText: "cooking"}

	if _, err := e.Enrich(context.Background(), helper); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Enrich(ctx, helper); err == nil || stub.calls != 1 {
		t.Fatalf("expected the paced second call to be abandoned, got %d calls (%v)", stub.calls, err)
	}
}
