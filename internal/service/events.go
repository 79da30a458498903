package service

import (
	"time"

	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/settlement"
)

// Event types published by the worker. Each one is also its routing key.
const (
	EventRowsLoaded        = "meter.rows.loaded"
	EventRowUpdated        = "meter.row.updated"
	EventRowSynced         = "meter.row.synced"
	EventRowFailed         = "meter.row.failed"
	EventRowInvalid        = "meter.row.invalid"
	EventBatchProgress     = "meter.batch.progress"
	EventSettlementUpdated = "settlement.updated"
	EventSettlementSaved   = "settlement.saved"
)

// MeterView is the wire shape of one utility of a row
type MeterView struct {
	ServiceRef *string  `json:"service_ref"`
	Previous   *float64 `json:"previous"`
	Current    *float64 `json:"current"`
	UnitPrice  *float64 `json:"unit_price"`
	Usage      *float64 `json:"usage"`
	Amount     *float64 `json:"amount"`
}

// RowView is the wire shape of a row
type RowView struct {
	ContractID        string     `json:"contract_id"`
	RoomLabel         string     `json:"room_label"`
	TenantLabel       string     `json:"tenant_label"`
	BranchLabel       string     `json:"branch_label"`
	State             rows.State `json:"state"`
	Message           string     `json:"message,omitempty"`
	ValidationMessage string     `json:"validation_message,omitempty"`
	LastSyncedAt      *time.Time `json:"last_synced_at"`
	Electricity       MeterView  `json:"electricity"`
	Water             MeterView  `json:"water"`
}

// RowEvent reports a row after an edit or a save
type RowEvent struct {
	Row       RowView  `json:"row"`
	Anomalies []string `json:"anomalies,omitempty"`
}

// RowsLoadedEvent reports a completed reload
type RowsLoadedEvent struct {
	Count int       `json:"count"`
	Rows  []RowView `json:"rows"`
}

// BatchProgressEvent is published once per row of a save-all run
type BatchProgressEvent struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// SettlementEvent reports the state of an open settlement sheet
type SettlementEvent struct {
	RequestID        string                              `json:"request_id"`
	ReportID         string                              `json:"report_id"`
	Description      string                              `json:"description"`
	ApprovalStatus   string                              `json:"approval_status"`
	CanCreateInvoice bool                                `json:"can_create_invoice"`
	Total            float64                             `json:"total"`
	Items            []settlement.LineItem               `json:"items"`
	Readings         map[rows.Utility]settlement.Reading `json:"readings"`
}

func newMeterView(m rows.Meter) MeterView {
	return MeterView{
		ServiceRef: m.ServiceRef,
		Previous:   m.Previous,
		Current:    m.Current,
		UnitPrice:  m.UnitPrice,
		Usage:      m.Usage,
		Amount:     m.Amount,
	}
}

// NewRowView converts a row snapshot to its wire shape.
func NewRowView(r rows.Row) RowView {
	return RowView{
		ContractID:        r.ContractID,
		RoomLabel:         r.RoomLabel,
		TenantLabel:       r.TenantLabel,
		BranchLabel:       r.BranchLabel,
		State:             r.Lifecycle.State,
		Message:           r.Lifecycle.Message,
		ValidationMessage: r.ValidationMessage,
		LastSyncedAt:      r.LastSyncedAt,
		Electricity:       newMeterView(r.Electricity),
		Water:             newMeterView(r.Water),
	}
}

func newSettlementEvent(s *settlement.Session) SettlementEvent {
	readings := make(map[rows.Utility]settlement.Reading, len(rows.Utilities))
	for _, u := range rows.Utilities {
		readings[u] = s.Sheet.Reading(u)
	}
	return SettlementEvent{
		RequestID:        s.RequestID,
		ReportID:         s.ReportID,
		Description:      s.Description,
		ApprovalStatus:   s.ApprovalStatus,
		CanCreateInvoice: s.CanCreateInvoice(),
		Total:            s.Sheet.Total(),
		Items:            s.Sheet.Items(),
		Readings:         readings,
	}
}
