package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the outbound half of the transport. It implements both
// relay.Deliverer and notify.Sender over one BotAPI connection.
type Sender struct {
	BotAPI *tgbotapi.BotAPI
}

// NewSender wraps a BotAPI connection.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{BotAPI: bot}
}

// Deliver sends plain text into the chat, threaded as a reply when
// replyToMessageID is non-zero, and returns the Telegram id of the delivered
// message.
func (s *Sender) Deliver(chatID int64, text string, replyToMessageID int) (int, error) {
	sent, err := s.BotAPI.Send(deliveryMessage(chatID, text, replyToMessageID))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func deliveryMessage(chatID int64, text string, replyToMessageID int) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyToMessageID != 0 {
		msg.ReplyParameters = tgbotapi.ReplyParameters{MessageID: replyToMessageID}
	}
	return msg
}

// Send delivers one plain notification message.
func (s *Sender) Send(chatID int64, text string) error {
	_, err := s.BotAPI.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
