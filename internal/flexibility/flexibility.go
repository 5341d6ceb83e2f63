// Package flexibility infers how far an employer actually strays from stated
// hiring preferences, based on their hire and reject decisions.
package flexibility

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
)

// Neutral is the score of a dimension without evidence.
const Neutral = 0.5

// Profile scores each dimension in [0,1]: 0 is rigid, 1 is fully flexible.
type Profile struct {
	AgeFlexibility         float64 `json:"age-flexibility"`
	NationalityFlexibility float64 `json:"nationality-flexibility"`
	SkillCompensation      float64 `json:"skill-compensation"`

	Hires      int `json:"hires"`
	Rejections int `json:"rejections"`
}

// NeutralProfile is returned for employers without hiring history.
func NeutralProfile() Profile {
	return Profile{
		AgeFlexibility:         Neutral,
		NationalityFlexibility: Neutral,
		SkillCompensation:      Neutral,
	}
}

// Config tunes how quickly evidence moves a dimension away from neutral.
type Config struct {
	// AgeDeviationScale is the deviation in years treated as maximal.
	AgeDeviationScale float64 `mapstructure:"age-deviation-scale"`
	// ConfidencePrior is the number of pseudo-observations anchoring scores at neutral.
	ConfidencePrior float64 `mapstructure:"confidence-prior"`
	// RejectionPenalty is the largest reduction applied by in-band rejections.
	RejectionPenalty float64 `mapstructure:"rejection-penalty"`
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		AgeDeviationScale: 10,
		ConfidencePrior:   2,
		RejectionPenalty:  0.25,
	}
}

// Analyze derives a profile using the default configuration.
func Analyze(history []records.Decision) Profile {
	return DefaultConfig().Analyze(history)
}

type evidence struct {
	sum     float64
	hires   int
	rejects int
}

func (e *evidence) hire(v float64) {
	e.sum += v
	e.hires++
}

func (e *evidence) score(c Config) float64 {
	if e.hires == 0 {
		return Neutral
	}

	target := e.sum / float64(e.hires)
	confidence := float64(e.hires) / (float64(e.hires) + math.Max(c.ConfidencePrior, 0))
	s := Neutral + confidence*(target-Neutral)

	if e.rejects > 0 {
		s -= c.RejectionPenalty * float64(e.rejects) / float64(e.rejects+e.hires)
	}

	return math.Min(math.Max(s, 0), 1)
}

// Analyze derives a profile from a decision history. Only hired and rejected
// decisions count. The result does not depend on the order of history.
func (c Config) Analyze(history []records.Decision) Profile {
	decisions := slices.Clone(history)
	slices.SortFunc(decisions, func(a, b records.Decision) int {
		if n := a.Timestamp.Compare(b.Timestamp); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var age, nationality, skills evidence
	profile := NeutralProfile()

	for _, d := range decisions {
		s := d.Snapshot
		switch d.Action {
		case records.ActionHired:
			profile.Hires++
			if dev, ok := c.ageDeviation(s); ok {
				age.hire(outside(dev))
			}
			if match, ok := nationalityMatch(s); ok {
				if match {
					nationality.hire(0)
				} else {
					nationality.hire(1)
				}
			}
			if share, ok := missingSkillShare(s); ok {
				skills.hire(outside(share))
			}
		case records.ActionRejected:
			profile.Rejections++
			if dev, ok := c.ageDeviation(s); ok && dev == 0 {
				age.rejects++
			}
			if match, ok := nationalityMatch(s); ok && match {
				nationality.rejects++
			}
			if share, ok := missingSkillShare(s); ok && share == 0 {
				skills.rejects++
			}
		}
	}

	profile.AgeFlexibility = age.score(c)
	profile.NationalityFlexibility = nationality.score(c)
	profile.SkillCompensation = skills.score(c)

	return profile
}

// outside maps a normalized deviation to an observation: in-band decisions
// count as 0 and any deviation lands strictly above neutral.
func outside(deviation float64) float64 {
	if deviation <= 0 {
		return 0
	}
	return Neutral + Neutral*math.Min(deviation, 1)
}

func (c Config) ageDeviation(s records.Snapshot) (float64, bool) {
	band := s.JobAge
	if s.HelperAge <= 0 || (band.Min <= 0 && band.Max <= 0) {
		return 0, false
	}

	dev := 0
	if band.Max > 0 && s.HelperAge > band.Max {
		dev = s.HelperAge - band.Max
	}
	if band.Min > 0 && s.HelperAge < band.Min {
		dev = band.Min - s.HelperAge
	}

	if c.AgeDeviationScale <= 0 {
		if dev > 0 {
			return 1, true
		}
		return 0, true
	}
	return float64(dev) / c.AgeDeviationScale, true
}

func nationalityMatch(s records.Snapshot) (bool, bool) {
	nationality := strings.ToLower(strings.TrimSpace(s.HelperNationality))
	if nationality == "" || len(s.JobNationalities) == 0 {
		return false, false
	}
	for _, preferred := range s.JobNationalities {
		if strings.ToLower(strings.TrimSpace(preferred)) == nationality {
			return true, true
		}
	}
	return false, true
}

func missingSkillShare(s records.Snapshot) (float64, bool) {
	if len(s.JobRequiredSkills) == 0 {
		return 0, false
	}

	has := make(map[string]bool, len(s.HelperSkills))
	for _, skill := range s.HelperSkills {
		has[features.CanonicalSkill(skill)] = true
	}

	missing := 0
	for _, skill := range s.JobRequiredSkills {
		if !has[features.CanonicalSkill(skill)] {
			missing++
		}
	}
	return float64(missing) / float64(len(s.JobRequiredSkills)), true
}
