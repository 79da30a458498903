package settlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/septivank/rental-meter-worker/internal/meter"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownItem   = errors.New("unknown settlement item")
	ErrLockedItem    = errors.New("settlement item amount is computed and cannot be edited")
	ErrInvalidAmount = errors.New("settlement amount must be a finite non-negative number")
)

// Item keys
const (
	KeyElectricity = "electricity_settlement"
	KeyWater       = "water_settlement"
	KeyWall        = "wall"
	KeyFloor       = "floor"
	KeyFurniture   = "furniture"
	KeyAppliances  = "appliances"
	KeyCleaning    = "cleaning"
	KeyKeys        = "keys"
	KeyOther       = "other"
)

// LineItem is one itemized charge of a checkout inspection
type LineItem struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
	Locked bool    `json:"locked"`
}

// Reading is the meter state recorded at checkout for one utility
type Reading struct {
	Previous  *float64 `json:"previous"`
	Current   *float64 `json:"current"`
	UnitPrice *float64 `json:"unit_price"`
}

// DefaultItems returns a fresh copy of the standard checkout items
func DefaultItems() []LineItem {
	return []LineItem{
		{Key: KeyElectricity, Label: "Electricity settlement", Locked: true},
		{Key: KeyWater, Label: "Water settlement", Locked: true},
		{Key: KeyWall, Label: "Walls and paint"},
		{Key: KeyFloor, Label: "Flooring"},
		{Key: KeyFurniture, Label: "Furniture"},
		{Key: KeyAppliances, Label: "Appliances"},
		{Key: KeyCleaning, Label: "Cleaning"},
		{Key: KeyKeys, Label: "Keys and access cards"},
		{Key: KeyOther, Label: "Other"},
	}
}

// lockedKey maps a utility to the item holding its derived amount.
func lockedKey(u rows.Utility) string {
	if u == rows.Water {
		return KeyWater
	}
	return KeyElectricity
}

// Aggregate sums every item's amount, locked or not.
func Aggregate(items []LineItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Amount))
	}
	return total.InexactFloat64()
}

// Sheet is the editable settlement of one inspection. The total is kept
// current on every mutation and listeners are told about each change.
type Sheet struct {
	mu        sync.Mutex
	readings  map[rows.Utility]Reading
	items     []LineItem
	total     float64
	extra     map[string]json.RawMessage
	listeners []func(total float64)
}

// NewSheet builds a sheet from items as given, without recomputing locked amounts.
func NewSheet(items []LineItem) *Sheet {
	s := &Sheet{
		readings: map[rows.Utility]Reading{},
		items:    append([]LineItem(nil), items...),
	}
	s.total = Aggregate(s.items)
	return s
}

// OnTotalChange registers fn to run after each change of an amount.
func (s *Sheet) OnTotalChange(fn func(total float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Sheet) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Sheet) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LineItem(nil), s.items...)
}

func (s *Sheet) Reading(u rows.Utility) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readings[u]
}

// Derived returns the usage and amount computed from a utility's reading.
func (s *Sheet) Derived(u rows.Utility) meter.Derived {
	r := s.Reading(u)
	return meter.Derive(r.Previous, r.Current, r.UnitPrice)
}

// SetReading updates one reading input and overwrites the utility's locked item.
func (s *Sheet) SetReading(u rows.Utility, f rows.Field, v *float64) error {
	if !u.Valid() {
		return fmt.Errorf("unknown utility %q", u)
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %q", rows.ErrUnknownField, f)
	}

	s.mu.Lock()
	r := s.readings[u]
	switch f {
	case rows.FieldPrevious:
		r.Previous = v
	case rows.FieldCurrent:
		r.Current = v
	case rows.FieldUnitPrice:
		r.UnitPrice = v
	}
	s.readings[u] = r
	s.recomputeLocked(u)
	s.commit()
	return nil
}

// SetAmount edits an unlocked item's amount.
func (s *Sheet) SetAmount(key string, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	i := s.index(key)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	if s.items[i].Locked {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLockedItem, key)
	}
	s.items[i].Amount = amount
	s.commit()
	return nil
}

// SetNote edits any item's note, locked items included.
func (s *Sheet) SetNote(key, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, key)
	}
	s.items[i].Note = note
	return nil
}

func (s *Sheet) index(key string) int {
	for i := range s.items {
		if s.items[i].Key == key {
			return i
		}
	}
	return -1
}

// recomputeLocked requires s.mu held. An unbillable reading settles at zero.
func (s *Sheet) recomputeLocked(u rows.Utility) {
	i := s.index(lockedKey(u))
	if i < 0 {
		return
	}
	r := s.readings[u]
	amount := 0.0
	if d := meter.Derive(r.Previous, r.Current, r.UnitPrice); d.Amount != nil {
		amount = *d.Amount
	}
	s.items[i].Amount = amount
}

// commit requires s.mu held and releases it before notifying listeners.
func (s *Sheet) commit() {
	s.total = Aggregate(s.items)
	total := s.total
	listeners := append([]func(float64){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(total)
	}
}
