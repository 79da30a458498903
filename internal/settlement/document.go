package settlement

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/septivank/rental-meter-worker/internal/rows"
)

const (
	fieldMeterReadings = "meter_readings"
	fieldItems         = "items"
)

type meterReadings struct {
	Electricity Reading `json:"electricity"`
	Water       Reading `json:"water"`
}

// Document is the decoded damage-details blob. Top-level fields the worker
// does not know are kept verbatim so a save never drops them.
type Document struct {
	Readings meterReadings
	Items    []LineItem
	extra    map[string]json.RawMessage
}

// ParseDocument decodes a blob. An empty blob is an empty document.
func ParseDocument(blob string) (Document, error) {
	var doc Document
	if strings.TrimSpace(blob) == "" {
		return doc, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return doc, fmt.Errorf("failed to decode damage details: %w", err)
	}

	if v, ok := raw[fieldMeterReadings]; ok {
		if err := json.Unmarshal(v, &doc.Readings); err != nil {
			return doc, fmt.Errorf("failed to decode meter readings: %w", err)
		}
		delete(raw, fieldMeterReadings)
	}
	if v, ok := raw[fieldItems]; ok {
		if err := json.Unmarshal(v, &doc.Items); err != nil {
			return doc, fmt.Errorf("failed to decode settlement items: %w", err)
		}
		delete(raw, fieldItems)
	}
	if len(raw) > 0 {
		doc.extra = raw
	}
	return doc, nil
}

// Encode renders the document back into a blob.
func (d Document) Encode() (string, error) {
	out := make(map[string]any, len(d.extra)+2)
	for k, v := range d.extra {
		out[k] = v
	}
	out[fieldMeterReadings] = d.Readings
	items := d.Items
	if items == nil {
		items = []LineItem{}
	}
	out[fieldItems] = items

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode damage details: %w", err)
	}
	return string(b), nil
}

// Merge seeds a sheet from defaults overlaid with a persisted document.
// Persisted amounts and notes win for matching keys, persisted items with
// unknown keys are kept as editable items, and locked amounts are recomputed
// from the persisted readings.
func Merge(defaults []LineItem, doc Document) *Sheet {
	persisted := make(map[string]LineItem, len(doc.Items))
	for _, it := range doc.Items {
		persisted[it.Key] = it
	}

	items := make([]LineItem, 0, len(defaults)+len(doc.Items))
	known := make(map[string]bool, len(defaults))
	for _, def := range defaults {
		it := def
		if p, ok := persisted[def.Key]; ok {
			if !it.Locked {
				it.Amount = p.Amount
			}
			it.Note = p.Note
		}
		items = append(items, it)
		known[def.Key] = true
	}
	for _, p := range doc.Items {
		if known[p.Key] {
			continue
		}
		p.Locked = false
		if p.Amount < 0 {
			p.Amount = 0
		}
		items = append(items, p)
		known[p.Key] = true
	}

	s := NewSheet(items)
	s.mu.Lock()
	s.readings[rows.Electricity] = doc.Readings.Electricity
	s.readings[rows.Water] = doc.Readings.Water
	s.extra = doc.extra
	s.recomputeLocked(rows.Electricity)
	s.recomputeLocked(rows.Water)
	s.total = Aggregate(s.items)
	s.mu.Unlock()
	return s
}

// Document snapshots the sheet for persistence.
func (s *Sheet) Document() Document {
	doc, _ := s.Snapshot()
	return doc
}

// Snapshot returns the document and its total taken under one lock.
func (s *Sheet) Snapshot() (Document, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Document{
		Readings: meterReadings{
			Electricity: s.readings[rows.Electricity],
			Water:       s.readings[rows.Water],
		},
		Items: append([]LineItem(nil), s.items...),
		extra: s.extra,
	}, s.total
}
