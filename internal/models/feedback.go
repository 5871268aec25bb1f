package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mood values a client can pick on the post-conversation keyboard.
const (
	MoodBetter  = "better"
	MoodSame    = "same"
	MoodWorse   = "worse"
	MoodSkipped = "skipped"
)

// Feedback is an anonymous post-conversation rating. It carries no client
// identity on purpose; the operator pair and the end timestamp are everything
// the payload codec preserves.
type Feedback struct {
	ID string `gorm:"primaryKey"`

	// OperatorID and OperatorLocalID are the identity pair of the operator
	// the conversation was held with.
	OperatorID      int64 `gorm:"not null;index"`
	OperatorLocalID uint  `gorm:"not null"`
	// EndedAt is the unix timestamp of the conversation end the feedback
	// refers to.
	EndedAt int64 `gorm:"not null"`
	// Mood is one of the Mood* constants, or empty when the client tapped
	// the button without choosing.
	Mood string

	CreatedAt time.Time
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when none is set.
func (f *Feedback) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}
