package models

import (
	"time"

	"github.com/lib/pq" // Needed for pq.StringArray
)

// User represents an identity known to the bot.
// Identity is the Telegram chat id; roles are stored as flags.
type User struct {
	// TelegramID is the platform-assigned identity. Stable, never reused.
	TelegramID int64 `gorm:"primaryKey" json:"telegram_id"`
	// LocalID is a small sequential display number shown to the counterpart
	// instead of the raw Telegram id. Assigned once, never reused.
	LocalID uint `gorm:"uniqueIndex;autoIncrement;<-:create" json:"local_id"`
	// IsOperator marks the user as eligible to be matched as an operator.
	IsOperator bool `gorm:"not null;default:false"`
	// IsAdmin marks the user as a recipient of error broadcasts.
	IsAdmin bool `gorm:"not null;default:false"`
	// Topics are the help topics an operator covers. Informational only,
	// matching stays uniform-random.
	Topics pq.StringArray `gorm:"type:text[]"`

	CreatedAt time.Time
}
