package features

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spigell/helper-matcher/internal/records"
)

// SchemaVersion is bumped whenever the vector layout or extraction rules change.
const SchemaVersion = 2

// Meta describes how and from what a vector was computed.
type Meta struct {
	Completeness *float64  `json:"completeness,omitempty"`
	ComputedAt   time.Time `json:"computed-at"`
	SourceHash   string    `json:"source-hash,omitempty"`
	Version      int       `json:"version"`
}

// Vector is the persisted, versioned feature representation of a helper.
type Vector struct {
	HelperFeatures
	Meta Meta `json:"meta"`
}

// NewVector stamps extracted features with metadata.
func NewVector(f HelperFeatures, sourceHash string, computedAt time.Time) *Vector {
	completeness := f.DataCompleteness
	return &Vector{
		HelperFeatures: f,
		Meta: Meta{
			Completeness: &completeness,
			ComputedAt:   computedAt,
			SourceHash:   sourceHash,
			Version:      SchemaVersion,
		},
	}
}

// SourceHash fingerprints a helper record. Map keys are marshalled in sorted
// order so equal records always hash equally.
func SourceHash(helper records.HelperRecord) (string, error) {
	payload, err := json.Marshal(helper)
	if err != nil {
		return "", fmt.Errorf("marshal helper %q: %w", helper.ID, err)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%x", sum[:]), nil
}

// Problems lists the reasons a stored vector fails validation. An empty result means valid.
func Problems(v *Vector) []string {
	if v == nil {
		return []string{"vector is absent"}
	}

	var problems []string
	if v.Demographics == nil {
		problems = append(problems, "demographics section is missing")
	}
	if v.Experience == nil {
		problems = append(problems, "experience section is missing")
	}
	if v.Languages == nil {
		problems = append(problems, "languages section is missing")
	}
	if v.Composite == nil {
		problems = append(problems, "composite section is missing")
	} else if q := v.Composite.OverallQualityScore; math.IsNaN(q) || q < 0 || q > 1 {
		problems = append(problems, fmt.Sprintf("overall quality score %v is outside [0, 1]", q))
	}
	if v.Meta.Completeness == nil {
		problems = append(problems, "meta completeness is undefined")
	}

	return problems
}

// Valid reports whether a stored vector is complete enough to be served from cache.
func Valid(v *Vector) bool {
	return len(Problems(v)) == 0
}
