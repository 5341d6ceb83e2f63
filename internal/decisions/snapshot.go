package decisions

import (
	"slices"
	"time"

	"github.com/spigell/helper-matcher/internal/features"
	"github.com/spigell/helper-matcher/internal/records"
)

// Snapshot freezes what the user saw when deciding: the helper's attributes
// at ref and the job's stated preferences.
func Snapshot(job records.JobRecord, helper records.HelperRecord, ref time.Time) records.Snapshot {
	jf := features.ExtractJobFeatures(job)
	hf := features.ExtractHelperFeatures(helper, ref)

	s := records.Snapshot{
		JobAge:            records.AgeRange{Min: jf.AgeMin, Max: jf.AgeMax},
		JobNationalities:  slices.Clone(jf.Nationalities),
		JobRequiredSkills: slices.Clone(jf.RequiredSkills),
	}
	if d := hf.Demographics; d != nil {
		if d.AgeKnown {
			s.HelperAge = d.Age
		}
		s.HelperNationality = d.Nationality
	}
	if e := hf.Experience; e != nil {
		s.HelperSkills = slices.Clone(e.Skills)
		s.HelperExperienceYears = e.TotalYears
	}
	return s
}
