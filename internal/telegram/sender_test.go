package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stretchr/testify/assert"
)

// TestDeliveryMessageThreadsReply verifies the outbound config carries the
// reply parameters the platform needs for threading.
func TestDeliveryMessageThreadsReply(t *testing.T) {
	msg := deliveryMessage(100, "of course", 9)

	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, "of course", msg.Text)
	assert.Equal(t, 9, msg.ReplyParameters.MessageID)
}

// TestDeliveryMessageWithoutReply: zero means no threading at all.
func TestDeliveryMessageWithoutReply(t *testing.T) {
	msg := deliveryMessage(100, "hello", 0)

	assert.Equal(t, tgbotapi.ReplyParameters{}, msg.ReplyParameters)
}
