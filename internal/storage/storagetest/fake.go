// Package storagetest provides an in-memory Storage implementation for
// tests. A single mutex linearizes every call, standing in for the database
// transaction machinery, so concurrency properties of the callers can be
// exercised without PostgreSQL.
package storagetest

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"helpline/backend/internal/models"
	"helpline/backend/internal/storage"

	"github.com/lib/pq"
)

// Fake implements storage.Storage in memory.
type Fake struct {
	mu sync.Mutex

	users         map[int64]*models.User
	nextLocalID   uint
	conversations map[int64]*models.Conversation // keyed by client id
	relays        []models.RelayRecord
	feedback      []models.Feedback
	claims        map[string]bool
	events        []models.Event

	// AssignAttempts counts CreateConversationWithFreeOperator calls, so
	// tests can assert the precondition check short-circuits before any
	// insert is attempted.
	AssignAttempts int

	// FailNextSaveFeedback makes the next SaveFeedback call return this
	// error, simulating a storage fault on the insert.
	FailNextSaveFeedback error
}

// NewFake returns an empty in-memory store.
func NewFake() *Fake {
	return &Fake{
		users:         make(map[int64]*models.User),
		conversations: make(map[int64]*models.Conversation),
		claims:        make(map[string]bool),
	}
}

// AddOperator registers an identity with the operator role, for test setup.
func (f *Fake) AddOperator(telegramID int64) *models.User {
	user, _ := f.SaveUserIfNotExists(telegramID)
	f.mu.Lock()
	defer f.mu.Unlock()
	user.IsOperator = true
	return user
}

func (f *Fake) SaveUserIfNotExists(telegramID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[telegramID]; ok {
		return user, nil
	}
	f.nextLocalID++
	user := &models.User{
		TelegramID: telegramID,
		LocalID:    f.nextLocalID,
		CreatedAt:  time.Now(),
	}
	f.users[telegramID] = user
	return user, nil
}

func (f *Fake) GetUserByTelegramID(telegramID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[telegramID], nil
}

func (f *Fake) ListAdmins() ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var admins []models.User
	for _, u := range f.users {
		if u.IsAdmin {
			admins = append(admins, *u)
		}
	}
	return admins, nil
}

func (f *Fake) ListOperators() ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var operators []models.User
	for _, u := range f.users {
		if u.IsOperator {
			operators = append(operators, *u)
		}
	}
	return operators, nil
}

func (f *Fake) SetOperatorRole(telegramID int64, isOperator bool) error {
	return f.setFlag(telegramID, func(u *models.User) { u.IsOperator = isOperator })
}

func (f *Fake) SetAdminRole(telegramID int64, isAdmin bool) error {
	return f.setFlag(telegramID, func(u *models.User) { u.IsAdmin = isAdmin })
}

func (f *Fake) SetOperatorTopics(telegramID int64, topics []string) error {
	return f.setFlag(telegramID, func(u *models.User) { u.Topics = pq.StringArray(topics) })
}

func (f *Fake) setFlag(telegramID int64, apply func(*models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[telegramID]
	if !ok {
		return fmt.Errorf("user %d not found", telegramID)
	}
	apply(user)
	return nil
}

// CreateConversationWithFreeOperator mirrors the transactional selection:
// under the lock it recomputes eligibility, picks uniformly at random and
// inserts, so concurrent callers observe each other's committed effects.
func (f *Fake) CreateConversationWithFreeOperator(clientID int64) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AssignAttempts++

	if _, busy := f.conversations[clientID]; busy {
		return nil, storage.ErrClientBusy
	}
	for _, conv := range f.conversations {
		if conv.OperatorID == clientID {
			return nil, storage.ErrRoleViolation
		}
	}

	var eligible []int64
	for id, u := range f.users {
		if !u.IsOperator || id == clientID {
			continue
		}
		if f.occupiedLocked(id) {
			continue
		}
		eligible = append(eligible, id)
	}
	if len(eligible) == 0 {
		return nil, storage.ErrNoFreeOperator
	}

	conv := &models.Conversation{
		ClientID:   clientID,
		OperatorID: eligible[rand.Intn(len(eligible))],
		StartedAt:  time.Now(),
	}
	f.conversations[clientID] = conv
	return conv, nil
}

func (f *Fake) occupiedLocked(telegramID int64) bool {
	for _, conv := range f.conversations {
		if conv.ClientID == telegramID || conv.OperatorID == telegramID {
			return true
		}
	}
	return false
}

func (f *Fake) GetConversationFor(telegramID int64) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.conversations {
		if conv.ClientID == telegramID || conv.OperatorID == telegramID {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *Fake) DeleteConversationByClient(clientID int64) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[clientID]
	if !ok {
		return nil, nil
	}
	delete(f.conversations, clientID)
	return conv, nil
}

func (f *Fake) CountActiveConversations() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.conversations)), nil
}

func (f *Fake) CountFreeOperators() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, u := range f.users {
		if u.IsOperator && !f.occupiedLocked(id) {
			n++
		}
	}
	return n, nil
}

func (f *Fake) SaveRelayPair(senderChatID int64, senderMessageID int, receiverChatID int64, receiverMessageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relays = append(f.relays,
		models.RelayRecord{
			SenderChatID:      senderChatID,
			SenderMessageID:   senderMessageID,
			ReceiverChatID:    receiverChatID,
			ReceiverMessageID: receiverMessageID,
		},
		models.RelayRecord{
			SenderChatID:      receiverChatID,
			SenderMessageID:   receiverMessageID,
			ReceiverChatID:    senderChatID,
			ReceiverMessageID: senderMessageID,
		},
	)
	return nil
}

func (f *Fake) ResolveRelayTarget(replyChatID, counterpartChatID int64, repliedToMessageID int) (*int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.relays {
		if r.SenderChatID == replyChatID && r.SenderMessageID == repliedToMessageID && r.ReceiverChatID == counterpartChatID {
			target := r.ReceiverMessageID
			return &target, nil
		}
	}
	return nil, nil
}

// RelayRecordCount reports how many ledger rows exist, for assertions.
func (f *Fake) RelayRecordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.relays)
}

func (f *Fake) SaveFeedback(fb *models.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailNextSaveFeedback; err != nil {
		f.FailNextSaveFeedback = nil
		return err
	}
	f.feedback = append(f.feedback, *fb)
	return nil
}

func (f *Fake) ClaimFeedbackOnce(clientID int64, endedAt int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%d", clientID, endedAt)
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *Fake) ReleaseFeedbackClaim(clientID int64, endedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claims, fmt.Sprintf("%d:%d", clientID, endedAt))
	return nil
}

func (f *Fake) FeedbackSummary() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := make(map[string]int64)
	for _, fb := range f.feedback {
		summary[fb.Mood]++
	}
	return summary, nil
}

// Feedback returns a copy of the stored rows, for assertions.
func (f *Fake) Feedback() []models.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Feedback(nil), f.feedback...)
}

func (f *Fake) PublishEvent(ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

var _ storage.Storage = (*Fake)(nil)
