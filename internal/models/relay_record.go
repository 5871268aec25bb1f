package models

import "time"

// RelayRecord links a delivered message to the original it was relayed from.
// Every relayed message produces two symmetric rows, one per direction, so a
// reply from either side resolves with a single lookup keyed by the replying
// chat and the replied-to Telegram message id.
//
// Rows are append-only and survive conversation end. Replies sent after the
// conversation ended still resolve here, but the relay checks for an active
// counterpart first, so those replies never reach this table.
type RelayRecord struct {
	ID uint `gorm:"primaryKey"`

	// SenderChatID and SenderMessageID identify the message as it exists in
	// the sender's chat. Telegram message ids are unique per chat, and a
	// message is relayed at most once, so the pair is unique.
	SenderChatID    int64 `gorm:"not null;uniqueIndex:idx_sender_pair"`
	SenderMessageID int   `gorm:"not null;uniqueIndex:idx_sender_pair"`

	// ReceiverChatID and ReceiverMessageID identify the delivered copy in the
	// counterpart's chat.
	ReceiverChatID    int64 `gorm:"not null;index"`
	ReceiverMessageID int   `gorm:"not null"`

	CreatedAt time.Time
}
