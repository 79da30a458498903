package db

import (
	"time"

	"github.com/google/uuid"
)

// Sync attempt statuses
const (
	SyncStatusSynced = "synced"
	SyncStatusFailed = "failed"
)

// SyncAttempt is one journaled persistence attempt of a utility reading
type SyncAttempt struct {
	ID              uuid.UUID
	ContractID      string
	Utility         string
	ServiceID       string
	PreviousReading *float64
	CurrentReading  *float64
	Usage           *float64
	Amount          *float64
	Status          string
	ErrorMessage    *string
	AttemptedAt     time.Time
}
