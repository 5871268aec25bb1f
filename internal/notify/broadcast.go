// Package notify delivers best-effort broadcasts to admin users, mainly the
// error reports produced by the event-handling boundary.
package notify

import (
	"errors"
	"log"

	"helpline/backend/internal/storage"
)

// ErrNoneDelivered means the broadcast reached no recipient at all. A partial
// delivery is a success: one informed admin is enough.
var ErrNoneDelivered = errors.New("broadcast reached no recipient")

// Sender delivers one message to one chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// Broadcaster fans a message out to all admins.
type Broadcaster struct {
	Storage storage.Storage
	Sender  Sender
}

// NewBroadcaster creates a new admin broadcaster.
func NewBroadcaster(s storage.Storage, sender Sender) *Broadcaster {
	return &Broadcaster{Storage: s, Sender: sender}
}

// BroadcastToAdmins sends text to every admin. A failure for one recipient
// never aborts delivery to the rest; the call fails only when nobody
// received the message.
func (b *Broadcaster) BroadcastToAdmins(text string) error {
	admins, err := b.Storage.ListAdmins()
	if err != nil {
		return err
	}

	delivered := 0
	for _, admin := range admins {
		if err := b.Sender.Send(admin.TelegramID, text); err != nil {
			log.Printf("WARN: Failed to notify admin #%d: %v", admin.LocalID, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return ErrNoneDelivered
	}
	return nil
}
