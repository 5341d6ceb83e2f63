package records

import "time"

// RetrainingStatus is the lifecycle state of a retraining request.
type RetrainingStatus string

const (
	RetrainingPending      RetrainingStatus = "pending"
	RetrainingDataPrepared RetrainingStatus = "data_prepared"
	RetrainingCompleted    RetrainingStatus = "completed"
)

// RetrainingType tells who asked for retraining.
type RetrainingType string

const (
	RetrainingScheduled RetrainingType = "scheduled"
	RetrainingManual    RetrainingType = "manual"
)

// RetrainingRequest tracks whether enough fresh decisions exist to refresh a user's model.
type RetrainingRequest struct {
	UserID            string           `json:"user-id"`
	Status            RetrainingStatus `json:"status"`
	RequestType       RetrainingType   `json:"request-type"`
	RequestedAt       time.Time        `json:"requested-at"`
	UpdatedAt         time.Time        `json:"updated-at"`
	TrainingDataCount int              `json:"training-data-count"`
}
