package events

import (
	"encoding/json"
)

// EventData is implemented by all typed event payloads
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CycleCompletedData summarises a finished decision cycle
type CycleCompletedData struct {
	CycleID    string  `json:"cycle_id"`
	Outcome    string  `json:"outcome"`
	Zone       string  `json:"zone"`
	Target     float64 `json:"target"`
	Exposure   float64 `json:"exposure"`
	Opened     int     `json:"opened"`
	Closed     int     `json:"closed"`
	Errors     int     `json:"errors"`
	DurationMs int64   `json:"duration_ms"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// RegimeChangedData carries the zone transition
type RegimeChangedData struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Price   float64 `json:"price"`
	MA1     float64 `json:"ma1"`
	MA2     float64 `json:"ma2"`
	Target  float64 `json:"target"`
	Bullish bool    `json:"bullish"`
}

// EventType returns the event type for RegimeChangedData
func (d *RegimeChangedData) EventType() EventType {
	return RegimeChanged
}

// OrderFilledData describes one executed order
type OrderFilledData struct {
	CycleID  string  `json:"cycle_id"`
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Reason   string  `json:"reason,omitempty"`
}

// EventType returns the event type for OrderFilledData
func (d *OrderFilledData) EventType() EventType {
	return OrderFilled
}

// PositionExitedData describes a position closed by an exit rule
type PositionExitedData struct {
	CycleID string `json:"cycle_id"`
	Symbol  string `json:"symbol"`
	Reason  string `json:"reason"`
}

// EventType returns the event type for PositionExitedData
func (d *PositionExitedData) EventType() EventType {
	return PositionExited
}

// MovingAveragesRefreshedData carries the reloaded index averages
type MovingAveragesRefreshedData struct {
	Index string  `json:"index"`
	MA1   float64 `json:"ma1"`
	MA2   float64 `json:"ma2"`
}

// EventType returns the event type for MovingAveragesRefreshedData
func (d *MovingAveragesRefreshedData) EventType() EventType {
	return MovingAveragesRefreshed
}

// BackupCompletedData describes an uploaded backup
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Databases int    `json:"databases"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData describes a failed job
type ErrorEventData struct {
	Job   string `json:"job"`
	Error string `json:"error"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// ToMap flattens typed data into the generic map carried by Event.
// Returns nil when data cannot be encoded.
func ToMap(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Decode fills a typed payload from an event's generic data
func Decode(event *Event, into EventData) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}
