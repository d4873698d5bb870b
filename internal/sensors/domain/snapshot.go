package sensors

import (
	"encoding/json"
	"time"
)

// Record keys written next to the per-sensor entries.
const (
	KeyPanel     = "painel"
	KeyTimestamp = "timestamp"
	KeyOverlay   = "painel_forcado"
)

// IsReservedName reports whether name collides with a record key.
func IsReservedName(name string) bool {
	switch name {
	case KeyPanel, KeyTimestamp, KeyOverlay:
		return true
	}
	return false
}

// Snapshot is the consolidated state of every sensor at one tick.
type Snapshot struct {
	Readings []NamedReading
	Panel    Panel
	At       time.Time
	// Manual is true when any sensor is overridden. It drives display only.
	Manual bool
}

// Statuses returns the reading statuses in snapshot order.
func (s Snapshot) Statuses() []Status {
	statuses := make([]Status, 0, len(s.Readings))
	for _, r := range s.Readings {
		statuses = append(statuses, r.Reading.Status)
	}
	return statuses
}

// Reading returns the reading for name.
func (s Snapshot) Reading(name string) (Reading, bool) {
	for _, r := range s.Readings {
		if r.Name == name {
			return r.Reading, true
		}
	}
	return Reading{}, false
}

// ModeLabel returns the console label for the snapshot mode.
func (s Snapshot) ModeLabel() string {
	if s.Manual {
		return "[MANUAL]"
	}
	return "[AUTO]"
}

// ReadingRecord is the wire form of a reading.
type ReadingRecord struct {
	Valor     float64 `json:"valor"`
	Status    Status  `json:"status"`
	Timestamp int64   `json:"timestamp"`
	Unidade   string  `json:"unidade"`
}

// Record returns the wire form of r.
func (r Reading) Record() ReadingRecord {
	return ReadingRecord{
		Valor:     r.Value,
		Status:    r.Status,
		Timestamp: r.At.UnixMilli(),
		Unidade:   r.Unit,
	}
}

// MarshalJSON encodes the reading as {valor,status,timestamp,unidade}.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// Fields returns the flat record published to the external store: one key per metric
// plus painel and timestamp.
func (s Snapshot) Fields() map[string]any {
	fields := make(map[string]any, len(s.Readings)+2)
	for _, r := range s.Readings {
		fields[r.Name] = r.Reading.Record()
	}
	fields[KeyPanel] = s.Panel
	fields[KeyTimestamp] = s.At.UnixMilli()
	return fields
}

// MarshalJSON encodes the snapshot as its published record.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// PanelOverlay is the forced panel written alongside snapshots.
type PanelOverlay struct {
	State Panel
	At    time.Time
}

type overlayRecord struct {
	Estado    Panel `json:"estado"`
	Timestamp int64 `json:"timestamp"`
}

// MarshalJSON encodes the overlay as {estado,timestamp}.
func (o PanelOverlay) MarshalJSON() ([]byte, error) {
	return json.Marshal(overlayRecord{Estado: o.State, Timestamp: o.At.UnixMilli()})
}

// UnmarshalJSON decodes {estado,timestamp}.
func (o *PanelOverlay) UnmarshalJSON(data []byte) error {
	var rec overlayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	o.State = rec.Estado
	o.At = time.UnixMilli(rec.Timestamp)
	return nil
}
