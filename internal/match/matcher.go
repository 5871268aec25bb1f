// Package match implements the conversation matching engine: assigning a
// free operator to a client exactly once under concurrent requests, and the
// start/end lifecycle built on top of it. All coordination state lives in the
// transactional store; the package holds no mutable state of its own.
package match

import (
	"errors"
	"log"

	"helpline/backend/internal/models"
	"helpline/backend/internal/storage"
)

// Outcome is the business result of an assignment attempt. These are expected
// outcomes, not errors; callers branch on them to pick the reply.
type Outcome string

const (
	OutcomeAssigned              Outcome = "assigned"
	OutcomeAlreadyInConversation Outcome = "already_in_conversation"
	OutcomeClientIsOperating     Outcome = "client_is_operating"
	OutcomeNoOperatorAvailable   Outcome = "no_operator_available"
)

// Assignment is the result of Assign. Conversation is set for OutcomeAssigned
// (the new row) and for the two already-active outcomes (the existing row).
type Assignment struct {
	Outcome      Outcome
	Conversation *models.Conversation
}

// Service wraps the storage layer with the matching rules.
type Service struct {
	Storage storage.Storage
}

// NewService creates a new matching service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// Assign pairs the client with one free operator chosen uniformly at random.
//
// The client's current membership is checked before the insert is attempted.
// The order matters: a client who is simultaneously a stale client and about
// to be picked as someone's operator would otherwise get a misleading outcome
// inferred from whichever constraint happened to fire first.
func (m *Service) Assign(clientID int64) (Assignment, error) {
	existing, err := m.Storage.GetConversationFor(clientID)
	if err != nil {
		return Assignment{}, err
	}
	if existing != nil {
		if existing.ClientID == clientID {
			return Assignment{Outcome: OutcomeAlreadyInConversation, Conversation: existing}, nil
		}
		return Assignment{Outcome: OutcomeClientIsOperating, Conversation: existing}, nil
	}

	conv, err := m.Storage.CreateConversationWithFreeOperator(clientID)
	switch {
	case err == nil:
		return Assignment{Outcome: OutcomeAssigned, Conversation: conv}, nil
	case errors.Is(err, storage.ErrNoFreeOperator):
		return Assignment{Outcome: OutcomeNoOperatorAvailable}, nil
	case errors.Is(err, storage.ErrOperatorTaken):
		// The selected operator was grabbed by a concurrent assignment
		// between selection and commit. The row lock makes this a corner
		// case; the deterministic mapping is "resource was taken".
		log.Printf("WARN: Operator taken concurrently while assigning client %d", clientID)
		return Assignment{Outcome: OutcomeNoOperatorAvailable}, nil
	case errors.Is(err, storage.ErrClientBusy):
		return Assignment{Outcome: OutcomeAlreadyInConversation}, nil
	case errors.Is(err, storage.ErrRoleViolation):
		return Assignment{Outcome: OutcomeClientIsOperating}, nil
	default:
		return Assignment{}, err
	}
}
