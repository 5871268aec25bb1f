// Package relay forwards messages between the two sides of a conversation
// and keeps the ledger that lets a reply to a forwarded copy resolve back to
// the original message in the other chat.
package relay

import (
	"log"

	"helpline/backend/internal/models"
	"helpline/backend/internal/storage"
)

// Outcome is the business result of a relay attempt.
type Outcome string

const (
	OutcomeDelivered             Outcome = "delivered"
	OutcomeNoActiveConversation  Outcome = "no_active_conversation"
	OutcomeReplyTargetUnresolved Outcome = "reply_target_unresolved"
	OutcomeDeliveryFailed        Outcome = "delivery_failed"
)

// Deliverer performs the platform send. It is the transport collaborator;
// the relay never talks to Telegram directly.
type Deliverer interface {
	// Deliver sends plain text into the chat, optionally threaded as a reply
	// to replyToMessageID (0 = no threading), and returns the id the platform
	// assigned to the delivered message.
	Deliver(chatID int64, text string, replyToMessageID int) (messageID int, err error)
}

// Result carries the outcome plus delivery coordinates for OutcomeDelivered.
type Result struct {
	Outcome           Outcome
	Conversation      *models.Conversation
	ReceiverChatID    int64
	ReceiverMessageID int
}

// Service relays messages for active conversations.
type Service struct {
	Storage   storage.Storage
	Deliverer Deliverer
}

// NewService creates a new relay service.
func NewService(s storage.Storage, d Deliverer) *Service {
	return &Service{Storage: s, Deliverer: d}
}

// Relay forwards one text message to the sender's counterpart.
//
// The counterpart is resolved first; without an active conversation nothing
// else is consulted, including the ledger. A reply whose target was never a
// relayed message yields OutcomeReplyTargetUnresolved even if the
// conversation is still active — and, conversely, ledger entries outlive the
// conversation, so "unresolved reply" and "conversation ended" are distinct
// conditions that the caller must not conflate (open product question, the
// literal contract is kept).
//
// Ledger rows are written only after the platform confirmed delivery. A
// failed send therefore leaves no record pointing at a message that does not
// exist.
func (r *Service) Relay(senderChatID int64, senderMessageID int, text string, inReplyTo *int) (Result, error) {
	conv, err := r.Storage.GetConversationFor(senderChatID)
	if err != nil {
		return Result{}, err
	}
	if conv == nil {
		return Result{Outcome: OutcomeNoActiveConversation}, nil
	}

	receiverChatID := conv.OperatorID
	if senderChatID == conv.OperatorID {
		receiverChatID = conv.ClientID
	}

	replyTarget := 0
	if inReplyTo != nil {
		target, err := r.Storage.ResolveRelayTarget(senderChatID, receiverChatID, *inReplyTo)
		if err != nil {
			return Result{}, err
		}
		if target == nil {
			return Result{Outcome: OutcomeReplyTargetUnresolved, Conversation: conv}, nil
		}
		replyTarget = *target
	}

	deliveredID, err := r.Deliverer.Deliver(receiverChatID, text, replyTarget)
	if err != nil {
		log.Printf("ERROR: Failed to deliver relayed message %d/%d to %d: %v",
			senderChatID, senderMessageID, receiverChatID, err)
		return Result{Outcome: OutcomeDeliveryFailed, Conversation: conv}, nil
	}

	if err := r.Storage.SaveRelayPair(senderChatID, senderMessageID, receiverChatID, deliveredID); err != nil {
		// The message is already with the counterpart; only future replies to
		// it will fail to resolve. Surface the fault to the event boundary.
		return Result{}, err
	}

	return Result{
		Outcome:           OutcomeDelivered,
		Conversation:      conv,
		ReceiverChatID:    receiverChatID,
		ReceiverMessageID: deliveredID,
	}, nil
}
