package models

import "encoding/json"

// Event is the tagged union of everything the simulation streams to clients.
// Concrete types marshal themselves into the wire envelope, so a handler can
// json.Marshal any Event and send the bytes as-is.
type Event interface {
	EventType() string
}

// Log levels used in LogEvent.
const (
	LogInfo    = "info"
	LogWarning = "warning"
	LogSuccess = "success"
	LogError   = "error"
)

// LogEvent narrates run progress for observers.
type LogEvent struct {
	Level string
	Text  string
}

func (LogEvent) EventType() string { return "log" }

func (e LogEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Level string `json:"level"`
		Text  string `json:"text"`
	}{"log", e.Level, e.Text})
}

// ErrorEvent replaces the whole event sequence when a run could not start.
type ErrorEvent struct {
	Text string
}

func (ErrorEvent) EventType() string { return "error" }

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"error", e.Text})
}

// AttackStartEvent announces the generated batch size and actual fraud count.
type AttackStartEvent struct {
	Total int
	Fraud int
}

func (AttackStartEvent) EventType() string { return "attack_start" }

func (e AttackStartEvent) MarshalJSON() ([]byte, error) {
	return marshalData("attack_start", struct {
		Total int `json:"total"`
		Fraud int `json:"fraud"`
	}{e.Total, e.Fraud})
}

// TransactionEvent carries one fully scored (and possibly explained)
// transaction.
type TransactionEvent struct {
	Txn ScoredTransaction
}

func (TransactionEvent) EventType() string { return "transaction" }

func (e TransactionEvent) MarshalJSON() ([]byte, error) {
	return marshalData("transaction", e.Txn)
}

// StatsUpdateEvent carries a stats snapshot mid-run.
type StatsUpdateEvent struct {
	Stats StatsSnapshot
}

func (StatsUpdateEvent) EventType() string { return "stats_update" }

func (e StatsUpdateEvent) MarshalJSON() ([]byte, error) {
	return marshalData("stats_update", e.Stats)
}

// AttackEndEvent is the terminal event of a successful run.
type AttackEndEvent struct {
	Stats StatsSnapshot
}

func (AttackEndEvent) EventType() string { return "attack_end" }

func (e AttackEndEvent) MarshalJSON() ([]byte, error) {
	return marshalData("attack_end", e.Stats)
}

// SnapshotEvent is sent to a dashboard subscriber immediately on connect.
type SnapshotEvent struct {
	Stats StatsSnapshot
}

func (SnapshotEvent) EventType() string { return "snapshot" }

func (e SnapshotEvent) MarshalJSON() ([]byte, error) {
	return marshalData("snapshot", e.Stats)
}

func marshalData(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}{eventType, data})
}
