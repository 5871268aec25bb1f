package models

import "time"

// Event kinds published to the monitor feed.
const (
	EventAssigned = "assigned"
	EventEnded    = "ended"
	EventRelayed  = "relayed"
	EventFeedback = "feedback"
)

// Event is an anonymized lifecycle notification for the admin monitor feed.
// Only local display numbers are carried, never Telegram ids.
type Event struct {
	Kind          string    `json:"kind"`
	ClientLocal   uint      `json:"client_local,omitempty"`
	OperatorLocal uint      `json:"operator_local,omitempty"`
	At            time.Time `json:"at"`
}
