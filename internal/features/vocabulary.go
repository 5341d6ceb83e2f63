package features

import (
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Canonical skill keys understood by the scorer.
const (
	SkillCooking     = "cooking"
	SkillCleaning    = "cleaning"
	SkillChildcare   = "childcare"
	SkillInfantCare  = "infant_care"
	SkillElderlyCare = "elderly_care"
	SkillPetCare     = "pet_care"
	SkillDriving     = "driving"
	SkillLaundry     = "laundry"
	SkillTutoring    = "tutoring"
	SkillGardening   = "gardening"
)

var synonyms = map[string]string{
	"cook":          SkillCooking,
	"cooking":       SkillCooking,
	"chef":          SkillCooking,
	"meals":         SkillCooking,
	"clean":         SkillCleaning,
	"cleaning":      SkillCleaning,
	"housekeeping":  SkillCleaning,
	"housework":     SkillCleaning,
	"childcare":     SkillChildcare,
	"child_care":    SkillChildcare,
	"babysitting":   SkillChildcare,
	"nanny":         SkillChildcare,
	"kids":          SkillChildcare,
	"children":      SkillChildcare,
	"infant":        SkillInfantCare,
	"infant_care":   SkillInfantCare,
	"newborn":       SkillInfantCare,
	"elderly":       SkillElderlyCare,
	"elderly_care":  SkillElderlyCare,
	"elder_care":    SkillElderlyCare,
	"caregiver":     SkillElderlyCare,
	"caregiving":    SkillElderlyCare,
	"pet":           SkillPetCare,
	"pets":          SkillPetCare,
	"pet_care":      SkillPetCare,
	"dog":           SkillPetCare,
	"dogs":          SkillPetCare,
	"driving":       SkillDriving,
	"driver":        SkillDriving,
	"laundry":       SkillLaundry,
	"ironing":       SkillLaundry,
	"tutoring":      SkillTutoring,
	"tutor":         SkillTutoring,
	"homework":      SkillTutoring,
	"gardening":     SkillGardening,
	"garden":        SkillGardening,
	"gardener":      SkillGardening,
	"house_keeping": SkillCleaning,
}

// Vocabulary returns the sorted canonical skill keys.
func Vocabulary() []string {
	seen := make(map[string]struct{})
	for _, canonical := range synonyms {
		seen[canonical] = struct{}{}
	}
	return sortedKeys(seen)
}

// CanonicalSkill maps a skill name to its canonical key. Unknown names are normalized but kept.
func CanonicalSkill(name string) string {
	key := normalizeKey(name)
	if canonical, ok := synonyms[key]; ok {
		return canonical
	}
	return key
}

var (
	sanitizer  = bluemonday.StrictPolicy()
	tokenSplit = regexp.MustCompile(`[^\p{L}]+`)
)

// SkillsFromText finds vocabulary skills mentioned in free text. Markup is stripped first.
func SkillsFromText(text string) []string {
	clean := strings.ToLower(sanitizer.Sanitize(text))
	tokens := tokenSplit.Split(clean, -1)

	found := make(map[string]struct{})
	for i, token := range tokens {
		if token == "" {
			continue
		}
		if canonical, ok := synonyms[token]; ok {
			found[canonical] = struct{}{}
		}
		if i+1 < len(tokens) && tokens[i+1] != "" {
			if canonical, ok := synonyms[token+"_"+tokens[i+1]]; ok {
				found[canonical] = struct{}{}
			}
		}
	}

	return sortedKeys(found)
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

func normalizeSet(values []string, canonical func(string) string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := canonical(v)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
