// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, routes commands and messages to the matching and
// relay engines, and presents their outcomes as localized replies.
package telegram

import (
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"helpline/backend/internal/config"
	"helpline/backend/internal/feedback"
	"helpline/backend/internal/localization"
	"helpline/backend/internal/match"
	"helpline/backend/internal/models"
	"helpline/backend/internal/notify"
	"helpline/backend/internal/relay"
	"helpline/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotService receives Telegram updates and dispatches each to the engines.
// Every update is handled in its own goroutine; all shared state lives in
// storage, so the handlers never coordinate in-process.
type BotService struct {
	BotAPI      *tgbotapi.BotAPI
	Sender      *Sender
	Storage     storage.Storage
	Matcher     *match.Service
	Relay       *relay.Service
	Feedback    *feedback.Service
	Broadcaster *notify.Broadcaster
	Localizer   *localization.Localizer
}

// NewBotService connects to the Bot API and wires the engines together.
func NewBotService(token string, s storage.Storage) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: Authorized on account %s", bot.Self.UserName)

	localizer, err := localization.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to create localizer: %w", err)
	}

	sender := NewSender(bot)
	return &BotService{
		BotAPI:      bot,
		Sender:      sender,
		Storage:     s,
		Matcher:     match.NewService(s),
		Relay:       relay.NewService(s, sender),
		Feedback:    feedback.NewService(s),
		Broadcaster: notify.NewBroadcaster(s, sender),
		Localizer:   localizer,
	}, nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.LongPollTimeoutSeconds
	updates := s.BotAPI.GetUpdatesChan(u)

	for update := range updates {
		go s.handleUpdate(update)
	}
}

// handleUpdate is the outermost event boundary. A panic in any handler is
// logged, reported to the admins best-effort, and answered with a generic
// apology; one failing event never takes the process down.
func (s *BotService) handleUpdate(update tgbotapi.Update) {
	chatID, lang := updateOrigin(update)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic while handling update %d: %v\n%s", update.UpdateID, r, debug.Stack())
			if err := s.Broadcaster.BroadcastToAdmins(fmt.Sprintf("Update %d failed: %v", update.UpdateID, r)); err != nil {
				log.Printf("ERROR: Failed to broadcast failure report: %v", err)
			}
			if chatID != 0 {
				s.reply(chatID, s.Localizer.GetString(lang, "internal_error"))
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil:
		s.handleIncomingMessage(update.Message)
	}
}

// updateOrigin extracts the chat to apologize to and the user's language.
func updateOrigin(update tgbotapi.Update) (int64, string) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, languageOf(update.Message.From)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, languageOf(update.CallbackQuery.From)
	}
	return 0, localization.DefaultLanguage
}

func languageOf(from *tgbotapi.User) string {
	if from == nil || from.LanguageCode == "" {
		return localization.DefaultLanguage
	}
	return from.LanguageCode
}

// handleIncomingMessage registers the identity and routes the message.
func (s *BotService) handleIncomingMessage(msg *tgbotapi.Message) {
	user, err := s.Storage.SaveUserIfNotExists(msg.Chat.ID)
	if err != nil {
		panic(fmt.Sprintf("failed to register user: %v", err))
	}
	lang := languageOf(msg.From)

	if msg.IsCommand() {
		s.handleCommand(msg, user, lang)
		return
	}

	if msg.Text == "" {
		if msg.MediaGroupID != "" {
			s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "media_group_unsupported"))
			return
		}
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "unsupported_content"))
		return
	}

	s.relayText(msg, user, lang)
}

func (s *BotService) handleCommand(msg *tgbotapi.Message, user *models.User, lang string) {
	switch msg.Command() {
	case "start", "help":
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "greeting"))
	case "start_conversation":
		s.handleStartConversation(msg.Chat.ID, user, lang)
	case "end_conversation":
		s.handleEndConversation(msg.Chat.ID, user, lang)
	default:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "greeting"))
	}
}

// handleStartConversation runs the matcher and presents the outcome.
func (s *BotService) handleStartConversation(chatID int64, user *models.User, lang string) {
	assignment, err := s.Matcher.Assign(chatID)
	if err != nil {
		panic(fmt.Sprintf("assignment failed: %v", err))
	}

	switch assignment.Outcome {
	case match.OutcomeAssigned:
		operator := s.mustGetUser(assignment.Conversation.OperatorID)
		s.reply(chatID, fmt.Sprintf(s.Localizer.GetString(lang, "conversation_started"), operator.LocalID))
		s.notifyUser(operator.TelegramID, "conversation_started_operator", user.LocalID)
		s.publishEvent(models.EventAssigned, user.LocalID, operator.LocalID)
	case match.OutcomeAlreadyInConversation:
		s.reply(chatID, s.Localizer.GetString(lang, "already_in_conversation"))
	case match.OutcomeClientIsOperating:
		s.reply(chatID, s.Localizer.GetString(lang, "client_is_operating"))
	case match.OutcomeNoOperatorAvailable:
		s.reply(chatID, s.Localizer.GetString(lang, "no_operator_available"))
	}
}

// handleEndConversation ends the caller's conversation as client. Operators
// get an explicit refusal: only the client can end a conversation.
func (s *BotService) handleEndConversation(chatID int64, user *models.User, lang string) {
	current, err := s.Matcher.Counterpart(chatID)
	if err != nil {
		panic(fmt.Sprintf("counterpart lookup failed: %v", err))
	}
	if current != nil && current.OperatorID == chatID {
		s.reply(chatID, s.Localizer.GetString(lang, "operator_cannot_end"))
		return
	}

	ended, err := s.Matcher.End(chatID)
	if err != nil {
		panic(fmt.Sprintf("end failed: %v", err))
	}
	if ended == nil {
		s.reply(chatID, s.Localizer.GetString(lang, "end_noop"))
		return
	}

	operator := s.mustGetUser(ended.OperatorID)
	s.reply(chatID, s.Localizer.GetString(lang, "conversation_ended"))
	s.notifyUser(operator.TelegramID, "conversation_ended_operator", user.LocalID)
	s.publishEvent(models.EventEnded, user.LocalID, operator.LocalID)

	s.sendFeedbackKeyboard(chatID, operator, lang)
}

// relayText forwards one text message through the relay engine.
func (s *BotService) relayText(msg *tgbotapi.Message, user *models.User, lang string) {
	var inReplyTo *int
	if msg.ReplyToMessage != nil {
		id := msg.ReplyToMessage.MessageID
		inReplyTo = &id
	}

	result, err := s.Relay.Relay(msg.Chat.ID, msg.MessageID, msg.Text, inReplyTo)
	if err != nil {
		panic(fmt.Sprintf("relay failed: %v", err))
	}

	switch result.Outcome {
	case relay.OutcomeDelivered:
		if len(msg.Entities) > 0 {
			s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "formatting_dropped"))
		}
		conv := result.Conversation
		client := s.mustGetUser(conv.ClientID)
		operator := s.mustGetUser(conv.OperatorID)
		s.publishEvent(models.EventRelayed, client.LocalID, operator.LocalID)
	case relay.OutcomeNoActiveConversation:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "not_in_conversation"))
	case relay.OutcomeReplyTargetUnresolved:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "reply_target_unresolved"))
	case relay.OutcomeDeliveryFailed:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "delivery_failed"))
	}
}

// sendFeedbackKeyboard offers the anonymous mood rating for an ended
// conversation. Every button carries the full payload; tapping any of them
// works even after a restart, because nothing about the keyboard is kept in
// memory.
func (s *BotService) sendFeedbackKeyboard(chatID int64, operator *models.User, lang string) {
	endedAt := time.Now().Unix()
	button := func(moodKey, mood string) (tgbotapi.InlineKeyboardButton, error) {
		data, err := feedback.Encode(feedback.Payload{
			OperatorID:      operator.TelegramID,
			OperatorLocalID: operator.LocalID,
			EndedAt:         endedAt,
			Mood:            mood,
		})
		if err != nil {
			return tgbotapi.InlineKeyboardButton{}, err
		}
		return tgbotapi.NewInlineKeyboardButtonData(s.Localizer.GetString(lang, moodKey), data), nil
	}

	better, err1 := button("mood_better", models.MoodBetter)
	same, err2 := button("mood_same", models.MoodSame)
	worse, err3 := button("mood_worse", models.MoodWorse)
	skip, err4 := button("mood_skip", models.MoodSkipped)
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			log.Printf("ERROR: Failed to encode feedback payload: %v", err)
			return
		}
	}

	prompt := tgbotapi.NewMessage(chatID, fmt.Sprintf(s.Localizer.GetString(lang, "feedback_prompt"), operator.LocalID))
	prompt.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(better, same, worse),
		tgbotapi.NewInlineKeyboardRow(skip),
	)
	if _, err := s.BotAPI.Send(prompt); err != nil {
		log.Printf("ERROR: Failed to send feedback keyboard to %d: %v", chatID, err)
	}
}

// handleCallbackQuery decodes a feedback tap. Foreign or malformed payloads
// are answered as unsupported actions, never treated as faults.
func (s *BotService) handleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	lang := languageOf(callbackQuery.From)

	payload, err := feedback.Decode(callbackQuery.Data)
	if err != nil {
		s.answerCallback(callbackQuery.ID, s.Localizer.GetString(lang, "unsupported_action"))
		return
	}

	outcome, err := s.Feedback.Record(callbackQuery.From.ID, payload)
	if err != nil {
		panic(fmt.Sprintf("feedback recording failed: %v", err))
	}

	switch outcome {
	case feedback.OutcomeRecorded:
		s.answerCallback(callbackQuery.ID, s.Localizer.GetString(lang, "feedback_thanks"))
		s.publishEvent(models.EventFeedback, 0, payload.OperatorLocalID)
	case feedback.OutcomeDuplicate:
		s.answerCallback(callbackQuery.ID, s.Localizer.GetString(lang, "feedback_duplicate"))
	}
}

// --- small helpers ---

func (s *BotService) reply(chatID int64, text string) {
	if err := s.Sender.Send(chatID, text); err != nil {
		log.Printf("ERROR: Failed to send reply to %d: %v", chatID, err)
	}
}

// notifyUser formats a localized notification carrying a local display id.
// Counterpart notifications use the default language; the counterpart's
// locale is not known outside their own updates.
func (s *BotService) notifyUser(chatID int64, key string, localID uint) {
	text := fmt.Sprintf(s.Localizer.GetString(localization.DefaultLanguage, key), localID)
	if err := s.Sender.Send(chatID, text); err != nil {
		log.Printf("ERROR: Failed to notify %d: %v", chatID, err)
	}
}

func (s *BotService) answerCallback(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := s.BotAPI.Request(callback); err != nil {
		log.Printf("ERROR: Failed to answer callback query: %v", err)
	}
}

// mustGetUser fetches a user row that the data model guarantees to exist;
// a miss means referential breakage and is handled by the event boundary.
func (s *BotService) mustGetUser(telegramID int64) *models.User {
	user, err := s.Storage.GetUserByTelegramID(telegramID)
	if err != nil {
		panic(fmt.Sprintf("user lookup failed: %v", err))
	}
	if user == nil {
		panic(fmt.Sprintf("user %d referenced by a conversation does not exist", telegramID))
	}
	return user
}

// publishEvent pushes an anonymized event to the monitor feed, best-effort.
func (s *BotService) publishEvent(kind string, clientLocal, operatorLocal uint) {
	ev := models.Event{
		Kind:          kind,
		ClientLocal:   clientLocal,
		OperatorLocal: operatorLocal,
		At:            time.Now(),
	}
	if err := s.Storage.PublishEvent(ev); err != nil {
		log.Printf("WARN: Failed to publish %s event: %v", kind, err)
	}
}
