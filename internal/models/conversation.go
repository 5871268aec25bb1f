package models

import "time"

// Conversation represents an active client/operator pairing.
// There is at most one row per client and at most one per operator, and the
// same identity never appears in both columns of the table at once. The
// primary key and the unique index enforce the per-role uniqueness; the
// cross-role exclusion is enforced by the assignment transaction, which only
// selects operators absent from both columns.
type Conversation struct {
	// ClientID is the Telegram id of the user being helped.
	ClientID int64 `gorm:"primaryKey;check:chk_client_not_operator,client_id <> operator_id"`
	// OperatorID is the Telegram id of the assigned operator.
	OperatorID int64 `gorm:"uniqueIndex;not null"`
	// StartedAt is the moment the assignment transaction committed.
	StartedAt time.Time
}
