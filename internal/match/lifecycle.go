package match

import "helpline/backend/internal/models"

// Counterpart returns the active conversation containing the identity in
// either role, or nil when the identity is not in a conversation. Absence is
// a valid outcome, not an error.
func (m *Service) Counterpart(telegramID int64) (*models.Conversation, error) {
	return m.Storage.GetConversationFor(telegramID)
}

// End closes the conversation where the identity is the client and returns
// the removed row so the caller can notify the former operator. Returns nil
// when there was nothing to end (calling End twice is a no-op).
//
// Only the client can end a conversation. An operator-initiated end does not
// exist; this is a stated product limitation, not an oversight.
func (m *Service) End(clientID int64) (*models.Conversation, error) {
	return m.Storage.DeleteConversationByClient(clientID)
}
