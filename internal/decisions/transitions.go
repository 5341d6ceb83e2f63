package decisions

import (
	"fmt"
	"slices"

	"github.com/spigell/helper-matcher/internal/records"
)

// Retraining request lifecycle:
//
//	(none) ──► pending ──► data_prepared ──► completed
//	              ▲  │            │               │
//	              └──┴────────────┴───────────────┘  a new request supersedes any state
var validTransitions = map[records.RetrainingStatus][]records.RetrainingStatus{
	"":                             {records.RetrainingPending},
	records.RetrainingPending:      {records.RetrainingPending, records.RetrainingDataPrepared},
	records.RetrainingDataPrepared: {records.RetrainingPending, records.RetrainingCompleted},
	records.RetrainingCompleted:    {records.RetrainingPending},
}

// ParseStatus converts a raw string to a RetrainingStatus.
func ParseStatus(s string) (records.RetrainingStatus, error) {
	st := records.RetrainingStatus(s)
	switch st {
	case records.RetrainingPending, records.RetrainingDataPrepared, records.RetrainingCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown retraining status %q", s)
}

// IsTransitionAllowed reports whether a request may move from one status to another.
// The empty status stands for a user without a request.
func IsTransitionAllowed(from, to records.RetrainingStatus) bool {
	return slices.Contains(validTransitions[from], to)
}
