package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/septivank/rental-meter-worker/internal/rentalapi"
	"go.uber.org/zap"
)

var ErrSheetNotOpen = errors.New("settlement sheet is not open")

// Approval statuses of an inspection report
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// CanCreateInvoice gates invoice creation on the inspection's approval status.
func CanCreateInvoice(status string) bool {
	return status == StatusApproved
}

// ReportAPI is the part of the rental API the settlement workflow uses
type ReportAPI interface {
	GetOrCreateInspectionReport(ctx context.Context, requestID string) (*rentalapi.Report, error)
	SaveInspectionReport(ctx context.Context, requestID string, req rentalapi.SaveReportRequest) (*rentalapi.Report, error)
}

// Session is an open inspection report and its sheet
type Session struct {
	RequestID      string
	ReportID       string
	Description    string
	ApprovalStatus string
	Sheet          *Sheet
}

// CanCreateInvoice reports whether the session's report is approved.
func (s *Session) CanCreateInvoice() bool {
	return CanCreateInvoice(s.ApprovalStatus)
}

// Service keeps the open settlement sheets and persists them
type Service struct {
	api    ReportAPI
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a new settlement service
func NewService(api ReportAPI, logger *zap.Logger) *Service {
	return &Service{
		api:      api,
		logger:   logger,
		sessions: map[string]*Session{},
	}
}

// Open loads (or creates) the request's report and seeds its sheet from the
// defaults merged with the persisted blob. Reopening replaces the session.
func (s *Service) Open(ctx context.Context, requestID string) (*Session, error) {
	report, err := s.api.GetOrCreateInspectionReport(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to open inspection report: %w", err)
	}

	doc, err := ParseDocument(report.DamageDetails)
	if err != nil {
		return nil, err
	}

	session := &Session{
		RequestID:      requestID,
		ReportID:       report.ID,
		Description:    report.Description,
		ApprovalStatus: report.ApprovalStatus,
		Sheet:          Merge(DefaultItems(), doc),
	}

	s.mu.Lock()
	s.sessions[requestID] = session
	s.mu.Unlock()

	s.logger.Info("settlement sheet opened",
		zap.String("request_id", requestID),
		zap.Int("items", len(session.Sheet.Items())),
		zap.Float64("total", session.Sheet.Total()),
	)
	return session, nil
}

// Get returns an open session
func (s *Service) Get(requestID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotOpen, requestID)
	}
	return session, nil
}

// Close forgets an open session
func (s *Service) Close(requestID string) {
	s.mu.Lock()
	delete(s.sessions, requestID)
	s.mu.Unlock()
}

// Save persists the whole sheet as one document. An empty description keeps
// the current one.
func (s *Service) Save(ctx context.Context, requestID, description string) (*rentalapi.Report, error) {
	session, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = session.Description
	}

	doc, total := session.Sheet.Snapshot()
	blob, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	report, err := s.api.SaveInspectionReport(ctx, requestID, rentalapi.SaveReportRequest{
		Description:     description,
		DamageDetails:   blob,
		TotalDamageCost: total,
	})
	if err != nil {
		s.logger.Error("failed to save settlement", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to save settlement: %w", err)
	}

	s.mu.Lock()
	session.Description = description
	if report.ApprovalStatus != "" {
		session.ApprovalStatus = report.ApprovalStatus
	}
	s.mu.Unlock()

	s.logger.Info("settlement saved",
		zap.String("request_id", requestID),
		zap.Float64("total", total),
	)
	return report, nil
}
