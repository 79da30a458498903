package settlement_test

import (
	"encoding/json"
	"testing"

	"github.com/septivank/rental-meter-worker/internal/meter"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const persistedBlob = `{
	"meter_readings": {
		"electricity": {"previous": 100, "current": 137, "unit_price": 3500},
		"water": {"previous": null, "current": 12, "unit_price": 15000}
	},
	"items": [
		{"key": "electricity_settlement", "label": "Old label", "amount": 1, "note": "checked", "locked": true},
		{"key": "wall", "label": "Walls", "amount": 80000, "note": "scuffs", "locked": false},
		{"key": "curtains", "label": "Curtains", "amount": 30000, "note": "", "locked": true}
	],
	"inspector": "Minh"
}`

func TestParseDocument_Empty(t *testing.T) {
	doc, err := settlement.ParseDocument("   ")
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
}

func TestParseDocument_Invalid(t *testing.T) {
	_, err := settlement.ParseDocument("{not json")
	assert.Error(t, err)
}

func TestMerge_DefaultsOverlaidWithPersisted(t *testing.T) {
	doc, err := settlement.ParseDocument(persistedBlob)
	require.NoError(t, err)

	sheet := settlement.Merge(settlement.DefaultItems(), doc)
	items := sheet.Items()
	require.Len(t, items, len(settlement.DefaultItems())+1)

	byKey := map[string]settlement.LineItem{}
	for _, it := range items {
		byKey[it.Key] = it
	}

	// locked amount recomputed from readings, label from defaults, note kept
	elec := byKey[settlement.KeyElectricity]
	assert.Equal(t, 129500.0, elec.Amount)
	assert.Equal(t, "Electricity settlement", elec.Label)
	assert.Equal(t, "checked", elec.Note)
	assert.True(t, elec.Locked)

	// water has no previous reading, nothing billable
	assert.Zero(t, byKey[settlement.KeyWater].Amount)

	assert.Equal(t, 80000.0, byKey[settlement.KeyWall].Amount)
	assert.Equal(t, "scuffs", byKey[settlement.KeyWall].Note)

	curtains := byKey["curtains"]
	assert.False(t, curtains.Locked)
	assert.Equal(t, 30000.0, curtains.Amount)

	assert.Equal(t, 129500.0+80000+30000, sheet.Total())
}

func TestDocument_RoundTrip(t *testing.T) {
	doc, err := settlement.ParseDocument(persistedBlob)
	require.NoError(t, err)
	sheet := settlement.Merge(settlement.DefaultItems(), doc)

	blob, err := sheet.Document().Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(blob), &raw))
	assert.Equal(t, "Minh", raw["inspector"])

	again, err := settlement.ParseDocument(blob)
	require.NoError(t, err)
	reopened := settlement.Merge(settlement.DefaultItems(), again)

	assert.Equal(t, sheet.Items(), reopened.Items())
	assert.Equal(t, sheet.Total(), reopened.Total())
	assert.Equal(t, sheet.Reading(rows.Electricity), reopened.Reading(rows.Electricity))
	assert.Equal(t, sheet.Reading(rows.Water), reopened.Reading(rows.Water))
}

func TestSheet_SnapshotTotalMatchesItems(t *testing.T) {
	sheet := settlement.NewSheet(settlement.DefaultItems())
	require.NoError(t, sheet.SetAmount(settlement.KeyWall, 120000))
	require.NoError(t, sheet.SetReading(rows.Water, rows.FieldPrevious, meter.Float(10)))
	require.NoError(t, sheet.SetReading(rows.Water, rows.FieldCurrent, meter.Float(14)))
	require.NoError(t, sheet.SetReading(rows.Water, rows.FieldUnitPrice, meter.Float(15000)))

	doc, total := sheet.Snapshot()

	assert.Equal(t, 180000.0, total)
	assert.Equal(t, settlement.Aggregate(doc.Items), total)
}
