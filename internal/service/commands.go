package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/septivank/rental-meter-worker/internal/logging"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/settlement"
	"go.uber.org/zap"
)

// Command types accepted on the command queue
const (
	CommandReload               = "reload"
	CommandEditReading          = "edit_reading"
	CommandSaveRow              = "save_row"
	CommandSaveAll              = "save_all"
	CommandSettlementOpen       = "settlement_open"
	CommandSettlementSetReading = "settlement_set_reading"
	CommandSettlementSetAmount  = "settlement_set_amount"
	CommandSettlementSetNote    = "settlement_set_note"
	CommandSettlementSave       = "settlement_save"
	CommandSettlementClose      = "settlement_close"
)

var (
	ErrUnknownCommand = errors.New("unknown command type")
	ErrMissingField   = errors.New("required command field is missing")
)

// Command is the JSON body of a command message. Value is nullable so an edit
// can clear a reading.
type Command struct {
	CommandID   string       `json:"command_id"`
	Type        string       `json:"type"`
	ContractID  string       `json:"contract_id,omitempty"`
	Utility     rows.Utility `json:"utility,omitempty"`
	Field       rows.Field   `json:"field,omitempty"`
	Value       *float64     `json:"value"`
	RequestID   string       `json:"request_id,omitempty"`
	ItemKey     string       `json:"item_key,omitempty"`
	Amount      *float64     `json:"amount,omitempty"`
	Note        string       `json:"note,omitempty"`
	Description string       `json:"description,omitempty"`
}

// EventPublisher publishes worker events
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any) error
}

// CommandHandler applies commands to the row store and settlement sheets and
// publishes what changed.
type CommandHandler struct {
	store      *rows.Store
	loader     *Loader
	sync       *Synchronizer
	settlement *settlement.Service
	publisher  EventPublisher
	logger     *zap.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	store *rows.Store,
	loader *Loader,
	sync *Synchronizer,
	settlementSvc *settlement.Service,
	publisher EventPublisher,
	logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		store:      store,
		loader:     loader,
		sync:       sync,
		settlement: settlementSvc,
		publisher:  publisher,
		logger:     logger,
	}
}

// HandleMessage decodes and executes one command message. A returned error
// dead-letters the message.
func (h *CommandHandler) HandleMessage(ctx context.Context, body []byte) error {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("invalid command payload: %w", err)
	}
	return h.Handle(ctx, cmd)
}

// Handle executes a decoded command
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) error {
	logger := logging.WithRequestID(h.logger, cmd.CommandID).With(zap.String("command", cmd.Type))
	logger.Debug("handling command")

	var err error
	switch cmd.Type {
	case CommandReload:
		err = h.reload(ctx)
	case CommandEditReading:
		err = h.editReading(ctx, cmd)
	case CommandSaveRow:
		err = h.saveRow(ctx, cmd)
	case CommandSaveAll:
		err = h.saveAll(ctx)
	case CommandSettlementOpen:
		err = h.settlementOpen(ctx, cmd)
	case CommandSettlementSetReading, CommandSettlementSetAmount, CommandSettlementSetNote:
		err = h.settlementEdit(ctx, cmd)
	case CommandSettlementSave:
		err = h.settlementSave(ctx, cmd)
	case CommandSettlementClose:
		err = h.settlementClose(cmd)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	if err != nil {
		logger.Warn("command failed", zap.Error(err))
		return err
	}
	return nil
}

// Reload refreshes the row store and publishes the loaded rows.
func (h *CommandHandler) Reload(ctx context.Context) error {
	return h.reload(ctx)
}

func (h *CommandHandler) reload(ctx context.Context) error {
	if err := h.loader.Reload(ctx, h.store); err != nil {
		return err
	}

	list := h.store.List()
	views := make([]RowView, len(list))
	for i, r := range list {
		views[i] = NewRowView(r)
	}
	return h.publisher.PublishEvent(ctx, EventRowsLoaded, RowsLoadedEvent{Count: len(views), Rows: views})
}

func (h *CommandHandler) editReading(ctx context.Context, cmd Command) error {
	if cmd.ContractID == "" {
		return fmt.Errorf("%w: contract_id", ErrMissingField)
	}
	row, err := h.store.Edit(cmd.ContractID, cmd.Utility, cmd.Field, cmd.Value)
	if err != nil {
		return err
	}
	return h.publisher.PublishEvent(ctx, EventRowUpdated, RowEvent{Row: NewRowView(row)})
}

func (h *CommandHandler) saveRow(ctx context.Context, cmd Command) error {
	if cmd.ContractID == "" {
		return fmt.Errorf("%w: contract_id", ErrMissingField)
	}
	result, err := h.sync.SaveRow(ctx, cmd.ContractID)
	if err != nil {
		return err
	}
	return h.publishResult(ctx, result)
}

func (h *CommandHandler) saveAll(ctx context.Context) error {
	progress := func(completed, total int) {
		event := BatchProgressEvent{Completed: completed, Total: total}
		if err := h.publisher.PublishEvent(ctx, EventBatchProgress, event); err != nil {
			h.logger.Warn("failed to publish batch progress", zap.Error(err))
		}
	}

	batch := h.sync.SaveAll(ctx, progress)

	var errs []error
	for _, result := range batch.Results {
		if result.Outcome == OutcomeSkipped {
			continue
		}
		if err := h.publishResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *CommandHandler) publishResult(ctx context.Context, result RowResult) error {
	var eventType string
	switch result.Outcome {
	case OutcomeSynced:
		eventType = EventRowSynced
	case OutcomeFailed:
		eventType = EventRowFailed
	case OutcomeInvalid:
		eventType = EventRowInvalid
	default:
		return nil
	}
	return h.publisher.PublishEvent(ctx, eventType, RowEvent{
		Row:       NewRowView(result.Row),
		Anomalies: result.Anomalies,
	})
}

func (h *CommandHandler) settlementOpen(ctx context.Context, cmd Command) error {
	if cmd.RequestID == "" {
		return fmt.Errorf("%w: request_id", ErrMissingField)
	}
	session, err := h.settlement.Open(ctx, cmd.RequestID)
	if err != nil {
		return err
	}

	logger := logging.WithRequestID(h.logger, cmd.RequestID)
	session.Sheet.OnTotalChange(func(total float64) {
		logger.Debug("settlement total changed", zap.Float64("total", total))
	})

	return h.publisher.PublishEvent(ctx, EventSettlementUpdated, newSettlementEvent(session))
}

func (h *CommandHandler) settlementEdit(ctx context.Context, cmd Command) error {
	if cmd.RequestID == "" {
		return fmt.Errorf("%w: request_id", ErrMissingField)
	}
	session, err := h.settlement.Get(cmd.RequestID)
	if err != nil {
		return err
	}

	switch cmd.Type {
	case CommandSettlementSetReading:
		err = session.Sheet.SetReading(cmd.Utility, cmd.Field, cmd.Value)
	case CommandSettlementSetAmount:
		if cmd.Amount == nil {
			return fmt.Errorf("%w: amount", ErrMissingField)
		}
		err = session.Sheet.SetAmount(cmd.ItemKey, *cmd.Amount)
	case CommandSettlementSetNote:
		err = session.Sheet.SetNote(cmd.ItemKey, cmd.Note)
	}
	if err != nil {
		return err
	}

	return h.publisher.PublishEvent(ctx, EventSettlementUpdated, newSettlementEvent(session))
}

func (h *CommandHandler) settlementSave(ctx context.Context, cmd Command) error {
	if cmd.RequestID == "" {
		return fmt.Errorf("%w: request_id", ErrMissingField)
	}
	if _, err := h.settlement.Save(ctx, cmd.RequestID, cmd.Description); err != nil {
		return err
	}
	session, err := h.settlement.Get(cmd.RequestID)
	if err != nil {
		return err
	}
	return h.publisher.PublishEvent(ctx, EventSettlementSaved, newSettlementEvent(session))
}

func (h *CommandHandler) settlementClose(cmd Command) error {
	if cmd.RequestID == "" {
		return fmt.Errorf("%w: request_id", ErrMissingField)
	}
	h.settlement.Close(cmd.RequestID)
	return nil
}
