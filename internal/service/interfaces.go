package service

import (
	"context"

	"github.com/septivank/rental-meter-worker/internal/db"
	"github.com/septivank/rental-meter-worker/internal/rentalapi"
)

// ContractAPI is the part of the rental API the meter workflow uses
type ContractAPI interface {
	ListActiveContracts(ctx context.Context) ([]rentalapi.ContractSummary, error)
	ListContractServices(ctx context.Context, contractID string) ([]rentalapi.ServiceInstance, error)
	UpdateMeterReading(ctx context.Context, contractID, serviceID string, update rentalapi.MeterReadingUpdate) error
}

// Journal records persistence attempts and serves usage history
type Journal interface {
	RecordAttempts(ctx context.Context, attempts []db.SyncAttempt) error
	RecentUsages(ctx context.Context, contractID, utility string, limit int) ([]float64, error)
}
