package feedback

import (
	"log"

	"helpline/backend/internal/models"
	"helpline/backend/internal/storage"
)

// Outcome is the business result of recording a rating.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
)

// Service persists ratings, one per ended conversation.
type Service struct {
	Storage storage.Storage
}

// NewService creates a new feedback service.
func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// Record stores one anonymous rating. The (client, endedAt) slot is claimed
// first so repeated taps on the same keyboard count once; the stored row
// itself carries no client identity.
func (s *Service) Record(clientID int64, p Payload) (Outcome, error) {
	fresh, err := s.Storage.ClaimFeedbackOnce(clientID, p.EndedAt)
	if err != nil {
		return "", err
	}
	if !fresh {
		return OutcomeDuplicate, nil
	}

	fb := &models.Feedback{
		OperatorID:      p.OperatorID,
		OperatorLocalID: p.OperatorLocalID,
		EndedAt:         p.EndedAt,
		Mood:            p.Mood,
	}
	if err := s.Storage.SaveFeedback(fb); err != nil {
		// Free the slot again, or the client's retry would be answered as a
		// duplicate while nothing was stored.
		if relErr := s.Storage.ReleaseFeedbackClaim(clientID, p.EndedAt); relErr != nil {
			log.Printf("WARN: Failed to release feedback slot for client %d: %v", clientID, relErr)
		}
		return "", err
	}
	return OutcomeRecorded, nil
}
