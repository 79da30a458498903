package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/septivank/rental-meter-worker/internal/anomaly"
	"github.com/septivank/rental-meter-worker/internal/clock"
	"github.com/septivank/rental-meter-worker/internal/db"
	"github.com/septivank/rental-meter-worker/internal/logging"
	"github.com/septivank/rental-meter-worker/internal/rentalapi"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/validator"
	"go.uber.org/zap"
)

const usageHistoryLimit = 10

// Outcome is the result of one row's save attempt
type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeFailed  Outcome = "failed"
	OutcomeInvalid Outcome = "invalid"
	OutcomeSkipped Outcome = "skipped"
)

// RowResult describes what happened to a row during a save
type RowResult struct {
	ContractID string
	Outcome    Outcome
	Message    string
	Anomalies  []string
	Row        rows.Row
}

// BatchResult summarizes a save-all run. Row states in the store remain the
// source of truth for the success/failure partition.
type BatchResult struct {
	Total   int
	Synced  int
	Failed  int
	Invalid int
	Skipped int
	Results []RowResult
}

// ProgressFunc is called after each row of a batch, whatever its outcome.
type ProgressFunc func(completed, total int)

// Synchronizer persists dirty rows through the rental API
type Synchronizer struct {
	store     *rows.Store
	api       ContractAPI
	validator *validator.Validator
	detector  *anomaly.Detector
	journal   Journal
	clock     clock.Clock
	logger    *zap.Logger
}

// NewSynchronizer creates a new synchronizer. detector and journal may be nil.
func NewSynchronizer(
	store *rows.Store,
	api ContractAPI,
	validator *validator.Validator,
	detector *anomaly.Detector,
	journal Journal,
	clk clock.Clock,
	logger *zap.Logger,
) *Synchronizer {
	if clk == nil {
		clk = clock.System()
	}
	return &Synchronizer{
		store:     store,
		api:       api,
		validator: validator,
		detector:  detector,
		journal:   journal,
		clock:     clk,
		logger:    logger,
	}
}

// BuildPayload returns the minimal update for a meter: only fields that are
// set, and nothing at all for a utility without a registered service.
func BuildPayload(m rows.Meter) rentalapi.MeterReadingUpdate {
	if !m.Enabled() {
		return rentalapi.MeterReadingUpdate{}
	}
	return rentalapi.MeterReadingUpdate{
		PreviousReading: m.Previous,
		CurrentReading:  m.Current,
	}
}

// SaveRow persists one row. The returned error covers rows that cannot be
// saved at all (unknown, clean, already saving); validation and persistence
// failures are reported through the result and the row's state.
func (s *Synchronizer) SaveRow(ctx context.Context, contractID string) (RowResult, error) {
	logger := logging.WithContractID(s.logger, contractID)

	row, err := s.store.BeginSave(contractID, s.validator.Check)
	if err != nil {
		if errors.Is(err, rows.ErrRowInvalid) {
			logger.Warn("row failed validation", zap.String("reason", row.ValidationMessage))
			return RowResult{
				ContractID: contractID,
				Outcome:    OutcomeInvalid,
				Message:    row.ValidationMessage,
				Row:        row,
			}, nil
		}
		return RowResult{ContractID: contractID, Outcome: OutcomeSkipped, Row: row}, err
	}

	attempts, persistErr := s.persist(ctx, row)

	var anomalies []string
	if persistErr == nil {
		anomalies = s.detectAnomalies(ctx, attempts, logger)
	}
	if s.journal != nil {
		if err := s.journal.RecordAttempts(ctx, attempts); err != nil {
			logger.Error("failed to journal sync attempts", zap.Error(err))
		}
	}

	if persistErr != nil {
		message := rentalapi.Message(persistErr)
		updated, err := s.store.FailSave(contractID, message)
		if err != nil {
			return RowResult{ContractID: contractID, Outcome: OutcomeFailed, Message: message}, err
		}
		logger.Warn("row save failed", zap.Error(persistErr))
		return RowResult{
			ContractID: contractID,
			Outcome:    OutcomeFailed,
			Message:    message,
			Row:        updated,
		}, nil
	}

	updated, err := s.store.CompleteSave(contractID, s.clock.Now())
	if err != nil {
		return RowResult{ContractID: contractID, Outcome: OutcomeSynced}, err
	}
	logger.Debug("row saved", zap.Int("calls", len(attempts)))
	return RowResult{
		ContractID: contractID,
		Outcome:    OutcomeSynced,
		Anomalies:  anomalies,
		Row:        updated,
	}, nil
}

// SaveAll persists every pending row one at a time. A failing row never
// aborts the batch; progress is reported once per row.
func (s *Synchronizer) SaveAll(ctx context.Context, progress ProgressFunc) BatchResult {
	pending := s.store.Pending()
	batch := BatchResult{
		Total:   len(pending),
		Results: make([]RowResult, 0, len(pending)),
	}
	if batch.Total == 0 {
		return batch
	}

	s.logger.Info("saving pending rows", zap.Int("total", batch.Total))

	for i, id := range pending {
		result, err := s.SaveRow(ctx, id)
		if err != nil {
			logging.WithContractID(s.logger, id).Warn("row skipped", zap.Error(err))
			result.Outcome = OutcomeSkipped
			result.Message = err.Error()
		}

		switch result.Outcome {
		case OutcomeSynced:
			batch.Synced++
		case OutcomeFailed:
			batch.Failed++
		case OutcomeInvalid:
			batch.Invalid++
		default:
			batch.Skipped++
		}
		batch.Results = append(batch.Results, result)

		if progress != nil {
			progress(i+1, batch.Total)
		}
	}

	s.logger.Info("pending rows processed",
		zap.Int("total", batch.Total),
		zap.Int("synced", batch.Synced),
		zap.Int("failed", batch.Failed),
		zap.Int("invalid", batch.Invalid),
		zap.Int("skipped", batch.Skipped),
	)
	return batch
}

// persist sends each enabled utility's payload in order and stops at the
// first failure. Empty payloads are skipped without a call.
func (s *Synchronizer) persist(ctx context.Context, row rows.Row) ([]db.SyncAttempt, error) {
	var attempts []db.SyncAttempt

	for _, u := range rows.Utilities {
		m := row.Meter(u)
		update := BuildPayload(*m)
		if update.Empty() {
			continue
		}

		err := s.api.UpdateMeterReading(ctx, row.ContractID, *m.ServiceRef, update)
		attempt := db.SyncAttempt{
			ContractID:      row.ContractID,
			Utility:         string(u),
			ServiceID:       *m.ServiceRef,
			PreviousReading: update.PreviousReading,
			CurrentReading:  update.CurrentReading,
			Usage:           m.Usage,
			Amount:          m.Amount,
			Status:          db.SyncStatusSynced,
			AttemptedAt:     s.clock.Now(),
		}
		if err != nil {
			msg := err.Error()
			attempt.Status = db.SyncStatusFailed
			attempt.ErrorMessage = &msg
			attempts = append(attempts, attempt)
			return attempts, fmt.Errorf("%s: %w", u, err)
		}
		attempts = append(attempts, attempt)
	}

	return attempts, nil
}

// detectAnomalies compares each synced usage with the journaled history,
// fetched before the new attempts are recorded.
func (s *Synchronizer) detectAnomalies(ctx context.Context, attempts []db.SyncAttempt, logger *zap.Logger) []string {
	if s.detector == nil || s.journal == nil {
		return nil
	}

	var found []string
	for _, a := range attempts {
		if a.Usage == nil {
			continue
		}
		history, err := s.journal.RecentUsages(ctx, a.ContractID, a.Utility, usageHistoryLimit)
		if err != nil {
			logger.Warn("failed to get usage history for anomaly detection",
				zap.Error(err),
				zap.String("utility", a.Utility),
			)
			continue
		}
		if isAnomaly, reason := s.detector.DetectUsageSpike(*a.Usage, history); isAnomaly {
			logger.Info("usage anomaly detected",
				zap.String("utility", a.Utility),
				zap.Float64("usage", *a.Usage),
				zap.String("reason", reason),
			)
			found = append(found, fmt.Sprintf("%s: %s", a.Utility, reason))
		}
	}
	return found
}
