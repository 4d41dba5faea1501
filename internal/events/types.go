package events

import "time"

// EventType identifies an event published on the bus
type EventType string

const (
	// CycleCompleted is published after every decision cycle
	CycleCompleted EventType = "CYCLE_COMPLETED"
	// RegimeChanged is published when the classified zone differs from the previous cycle
	RegimeChanged EventType = "REGIME_CHANGED"
	// OrderFilled is published for every executed order
	OrderFilled EventType = "ORDER_FILLED"
	// PositionExited is published when an exit rule closes a position
	PositionExited EventType = "POSITION_EXITED"
	// MovingAveragesRefreshed is published after the daily index average reload
	MovingAveragesRefreshed EventType = "MOVING_AVERAGES_REFRESHED"
	// BackupCompleted is published after a database backup upload
	BackupCompleted EventType = "BACKUP_COMPLETED"
	// ErrorOccurred is published when a scheduled job fails
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type in publication order of a typical cycle
var AllTypes = []EventType{
	MovingAveragesRefreshed,
	RegimeChanged,
	PositionExited,
	OrderFilled,
	CycleCompleted,
	BackupCompleted,
	ErrorOccurred,
}

// Event is one published event
type Event struct {
	Type      EventType              `json:"type" msgpack:"type"`
	Module    string                 `json:"module" msgpack:"module"`
	Timestamp time.Time              `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
}
