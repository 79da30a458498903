package rows

import (
	"time"

	"github.com/septivank/rental-meter-worker/internal/meter"
)

// Utility identifies one of the two metered services on a contract
type Utility string

const (
	Electricity Utility = "electricity"
	Water       Utility = "water"
)

// Utilities lists the metered utilities in save order
var Utilities = []Utility{Electricity, Water}

func (u Utility) Valid() bool {
	return u == Electricity || u == Water
}

// Field names an editable input of a meter
type Field string

const (
	FieldPrevious  Field = "previous"
	FieldCurrent   Field = "current"
	FieldUnitPrice Field = "unit_price"
)

func (f Field) Valid() bool {
	return f == FieldPrevious || f == FieldCurrent || f == FieldUnitPrice
}

// Meter holds the inputs and derived values for one utility of a row.
// Values behind pointers are never mutated in place; edits swap the pointer.
type Meter struct {
	ServiceRef *string
	Previous   *float64
	Current    *float64
	UnitPrice  *float64

	Usage  *float64
	Amount *float64
}

// Enabled reports whether a billable service is registered for the utility.
func (m Meter) Enabled() bool {
	return m.ServiceRef != nil
}

func (m *Meter) recompute() {
	d := meter.Derive(m.Previous, m.Current, m.UnitPrice)
	m.Usage = d.Usage
	m.Amount = d.Amount
}

func (m *Meter) set(f Field, v *float64) {
	switch f {
	case FieldPrevious:
		m.Previous = v
	case FieldCurrent:
		m.Current = v
	case FieldUnitPrice:
		m.UnitPrice = v
	}
	m.recompute()
}

// Row is the editable meter-reading record of one active contract
type Row struct {
	ContractID  string
	RoomLabel   string
	TenantLabel string
	BranchLabel string

	Electricity Meter
	Water       Meter

	Lifecycle         Lifecycle
	ValidationMessage string
	LastSyncedAt      *time.Time

	editedWhileSaving bool
}

// NewRow builds a clean row and computes its derived fields.
func NewRow(contractID, room, tenant, branch string, electricity, water Meter) Row {
	r := Row{
		ContractID:  contractID,
		RoomLabel:   room,
		TenantLabel: tenant,
		BranchLabel: branch,
		Electricity: electricity,
		Water:       water,
		Lifecycle:   Lifecycle{State: StateClean},
	}
	r.Electricity.recompute()
	r.Water.recompute()
	return r
}

// Meter returns the meter for u, or nil for an unknown utility.
func (r *Row) Meter(u Utility) *Meter {
	switch u {
	case Electricity:
		return &r.Electricity
	case Water:
		return &r.Water
	}
	return nil
}
