package rows

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrRowNotFound       = errors.New("row not found")
	ErrUtilityDisabled   = errors.New("no billable service registered for utility")
	ErrUnknownField      = errors.New("unknown meter field")
	ErrRowSaving         = errors.New("row is already saving")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrRowInvalid        = errors.New("row failed validation")
)

// Store owns the rows of one session. All mutation goes through its
// contract-keyed methods; readers get copies.
type Store struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]*Row
}

func NewStore(rows []Row) *Store {
	s := &Store{}
	s.Replace(rows)
	return s
}

// Replace swaps the whole row set, keeping the given order.
func (s *Store) Replace(rows []Row) {
	order := make([]string, 0, len(rows))
	byID := make(map[string]*Row, len(rows))
	for i := range rows {
		r := rows[i]
		if _, dup := byID[r.ContractID]; dup {
			continue
		}
		order = append(order, r.ContractID)
		byID[r.ContractID] = &r
	}

	s.mu.Lock()
	s.order = order
	s.rows = byID
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) Get(contractID string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[contractID]
	if !ok {
		return Row{}, false
	}
	return *r, true
}

func (s *Store) List() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.rows[id])
	}
	return out
}

// Pending returns the ids of rows awaiting persistence (dirty or errored), in row order.
func (s *Store) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.order {
		switch s.rows[id].Lifecycle.State {
		case StateDirty, StateErrored:
			ids = append(ids, id)
		}
	}
	return ids
}

// Edit stamps a new input value, recomputes the utility's derived fields and
// marks the row dirty. A row that is saving keeps its state; the edit is
// carried into a dirty state once the outstanding save completes.
func (s *Store) Edit(contractID string, u Utility, f Field, v *float64) (Row, error) {
	if !f.Valid() {
		return Row{}, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[contractID]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, contractID)
	}
	m := r.Meter(u)
	if m == nil {
		return Row{}, fmt.Errorf("unknown utility %q", u)
	}
	if !m.Enabled() {
		return Row{}, fmt.Errorf("%w: %s on %s", ErrUtilityDisabled, u, contractID)
	}

	m.set(f, v)
	r.ValidationMessage = ""

	switch r.Lifecycle.State {
	case StateSaving:
		r.editedWhileSaving = true
	case StateClean, StateErrored:
		if err := r.Lifecycle.moveTo(StateDirty, ""); err != nil {
			return Row{}, err
		}
	}
	return *r, nil
}

// BeginSave moves a dirty or errored row to saving. check runs under the
// store lock; a failing check records the reason as the row's validation
// message and leaves the lifecycle untouched.
func (s *Store) BeginSave(contractID string, check func(Row) error) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[contractID]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, contractID)
	}
	if r.Lifecycle.State == StateSaving {
		return *r, fmt.Errorf("%w: %s", ErrRowSaving, contractID)
	}
	if !CanTransition(r.Lifecycle.State, StateSaving) {
		return *r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Lifecycle.State, StateSaving)
	}

	if check != nil {
		if err := check(*r); err != nil {
			r.ValidationMessage = err.Error()
			return *r, fmt.Errorf("%w: %v", ErrRowInvalid, err)
		}
	}

	r.ValidationMessage = ""
	r.editedWhileSaving = false
	if err := r.Lifecycle.moveTo(StateSaving, ""); err != nil {
		return *r, err
	}
	return *r, nil
}

// CompleteSave marks a saving row clean and stamps lastSyncedAt.
func (s *Store) CompleteSave(contractID string, at time.Time) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[contractID]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, contractID)
	}
	if err := r.Lifecycle.moveTo(StateClean, ""); err != nil {
		return *r, err
	}
	synced := at
	r.LastSyncedAt = &synced

	if r.editedWhileSaving {
		r.editedWhileSaving = false
		if err := r.Lifecycle.moveTo(StateDirty, ""); err != nil {
			return *r, err
		}
	}
	return *r, nil
}

// FailSave marks a saving row errored with the failure message.
func (s *Store) FailSave(contractID string, message string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[contractID]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, contractID)
	}
	r.editedWhileSaving = false
	if err := r.Lifecycle.moveTo(StateErrored, message); err != nil {
		return *r, err
	}
	return *r, nil
}
