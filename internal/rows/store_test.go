package rows_test

import (
	"errors"
	"testing"
	"time"

	"github.com/septivank/rental-meter-worker/internal/meter"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestStore() *rows.Store {
	return rows.NewStore([]rows.Row{
		rows.NewRow("c1", "A101", "Alice", "North",
			rows.Meter{ServiceRef: strPtr("svc-e1"), Previous: meter.Float(100), Current: meter.Float(137), UnitPrice: meter.Float(3500)},
			rows.Meter{ServiceRef: strPtr("svc-w1"), Previous: meter.Float(10), UnitPrice: meter.Float(15000)},
		),
		rows.NewRow("c2", "A102", "Bob", "North",
			rows.Meter{ServiceRef: strPtr("svc-e2")},
			rows.Meter{},
		),
	})
}

func TestNewRow_ComputesDerivedFields(t *testing.T) {
	s := newTestStore()
	r, ok := s.Get("c1")
	require.True(t, ok)

	require.NotNil(t, r.Electricity.Usage)
	assert.Equal(t, 37.0, *r.Electricity.Usage)
	require.NotNil(t, r.Electricity.Amount)
	assert.Equal(t, 129500.0, *r.Electricity.Amount)
	assert.Nil(t, r.Water.Usage)
	assert.Nil(t, r.Water.Amount)
	assert.Equal(t, rows.StateClean, r.Lifecycle.State)
}

func TestEdit_MarksDirtyAndRecomputes(t *testing.T) {
	s := newTestStore()

	r, err := s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(14))
	require.NoError(t, err)

	assert.Equal(t, rows.StateDirty, r.Lifecycle.State)
	require.NotNil(t, r.Water.Usage)
	assert.Equal(t, 4.0, *r.Water.Usage)
	require.NotNil(t, r.Water.Amount)
	assert.Equal(t, 60000.0, *r.Water.Amount)

	// electricity untouched
	assert.Equal(t, 129500.0, *r.Electricity.Amount)
}

func TestEdit_NegativeUsageClearsAmount(t *testing.T) {
	s := newTestStore()

	r, err := s.Edit("c1", rows.Electricity, rows.FieldCurrent, meter.Float(90))
	require.NoError(t, err)
	assert.Equal(t, -10.0, *r.Electricity.Usage)
	assert.Nil(t, r.Electricity.Amount)
}

func TestEdit_DisabledUtilityRejected(t *testing.T) {
	s := newTestStore()

	_, err := s.Edit("c2", rows.Water, rows.FieldCurrent, meter.Float(5))
	assert.ErrorIs(t, err, rows.ErrUtilityDisabled)

	r, _ := s.Get("c2")
	assert.Equal(t, rows.StateClean, r.Lifecycle.State)
}

func TestEdit_UnknownRowAndField(t *testing.T) {
	s := newTestStore()

	_, err := s.Edit("missing", rows.Water, rows.FieldCurrent, meter.Float(5))
	assert.ErrorIs(t, err, rows.ErrRowNotFound)

	_, err = s.Edit("c1", rows.Water, rows.Field("reading"), meter.Float(5))
	assert.ErrorIs(t, err, rows.ErrUnknownField)
}

func TestBeginSave_CleanRowCannotSave(t *testing.T) {
	s := newTestStore()

	_, err := s.BeginSave("c1", nil)
	assert.ErrorIs(t, err, rows.ErrInvalidTransition)

	r, _ := s.Get("c1")
	assert.Equal(t, rows.StateClean, r.Lifecycle.State)
}

func TestBeginSave_RejectsSecondConcurrentSave(t *testing.T) {
	s := newTestStore()
	_, err := s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(12))
	require.NoError(t, err)

	r, err := s.BeginSave("c1", nil)
	require.NoError(t, err)
	assert.Equal(t, rows.StateSaving, r.Lifecycle.State)

	_, err = s.BeginSave("c1", nil)
	assert.ErrorIs(t, err, rows.ErrRowSaving)
}

func TestBeginSave_FailedCheckKeepsDirty(t *testing.T) {
	s := newTestStore()
	_, err := s.Edit("c1", rows.Electricity, rows.FieldCurrent, meter.Float(90))
	require.NoError(t, err)

	r, err := s.BeginSave("c1", func(rows.Row) error { return errors.New("current reading is lower than previous") })
	assert.ErrorIs(t, err, rows.ErrRowInvalid)
	assert.Equal(t, rows.StateDirty, r.Lifecycle.State)
	assert.Equal(t, "current reading is lower than previous", r.ValidationMessage)

	r, err = s.Edit("c1", rows.Electricity, rows.FieldCurrent, meter.Float(140))
	require.NoError(t, err)
	assert.Empty(t, r.ValidationMessage)
}

func TestCompleteSave_StampsLastSynced(t *testing.T) {
	s := newTestStore()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	_, _ = s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(12))
	_, err := s.BeginSave("c1", nil)
	require.NoError(t, err)

	r, err := s.CompleteSave("c1", at)
	require.NoError(t, err)
	assert.Equal(t, rows.StateClean, r.Lifecycle.State)
	require.NotNil(t, r.LastSyncedAt)
	assert.True(t, r.LastSyncedAt.Equal(at))
}

func TestFailSave_ThenEditOrRetry(t *testing.T) {
	s := newTestStore()
	_, _ = s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(12))
	_, _ = s.BeginSave("c1", nil)

	r, err := s.FailSave("c1", "gateway timeout")
	require.NoError(t, err)
	assert.Equal(t, rows.StateErrored, r.Lifecycle.State)
	assert.Equal(t, "gateway timeout", r.Lifecycle.Message)
	assert.Nil(t, r.LastSyncedAt)

	// retry straight from errored
	r, err = s.BeginSave("c1", nil)
	require.NoError(t, err)
	assert.Equal(t, rows.StateSaving, r.Lifecycle.State)
	_, _ = s.FailSave("c1", "gateway timeout")

	// or edit back to dirty
	r, err = s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(13))
	require.NoError(t, err)
	assert.Equal(t, rows.StateDirty, r.Lifecycle.State)
	assert.Empty(t, r.Lifecycle.Message)
}

func TestEditWhileSaving_CarriedIntoDirty(t *testing.T) {
	s := newTestStore()
	_, _ = s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(12))
	_, err := s.BeginSave("c1", nil)
	require.NoError(t, err)

	r, err := s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(15))
	require.NoError(t, err)
	assert.Equal(t, rows.StateSaving, r.Lifecycle.State)
	assert.Equal(t, 15.0, *r.Water.Current)

	r, err = s.CompleteSave("c1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, rows.StateDirty, r.Lifecycle.State)
	assert.NotNil(t, r.LastSyncedAt)
}

func TestPending_DirtyAndErroredInRowOrder(t *testing.T) {
	s := newTestStore()
	_, _ = s.Edit("c2", rows.Electricity, rows.FieldCurrent, meter.Float(1))
	_, _ = s.Edit("c1", rows.Water, rows.FieldCurrent, meter.Float(12))
	_, _ = s.BeginSave("c1", nil)
	_, _ = s.FailSave("c1", "boom")

	assert.Equal(t, []string{"c1", "c2"}, s.Pending())
}

func TestTransitionClosure(t *testing.T) {
	all := []rows.State{rows.StateClean, rows.StateDirty, rows.StateSaving, rows.StateErrored}
	allowed := map[[2]rows.State]bool{
		{rows.StateClean, rows.StateDirty}:    true,
		{rows.StateDirty, rows.StateSaving}:   true,
		{rows.StateSaving, rows.StateClean}:   true,
		{rows.StateSaving, rows.StateErrored}: true,
		{rows.StateErrored, rows.StateDirty}:  true,
		{rows.StateErrored, rows.StateSaving}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]rows.State{from, to}]
			assert.Equal(t, want, rows.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestReplace_DropsDuplicateContracts(t *testing.T) {
	s := rows.NewStore([]rows.Row{
		rows.NewRow("c1", "A", "", "", rows.Meter{}, rows.Meter{}),
		rows.NewRow("c1", "B", "", "", rows.Meter{}, rows.Meter{}),
	})
	assert.Equal(t, 1, s.Len())
	r, _ := s.Get("c1")
	assert.Equal(t, "A", r.RoomLabel)
}
