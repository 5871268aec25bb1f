package storage

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"helpline/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Sentinel errors the assignment transaction maps constraint violations to.
// Callers branch on these with errors.Is; anything else is an unexpected
// storage fault and must be surfaced, never swallowed.
var (
	// ErrNoFreeOperator means no eligible free operator existed at evaluation time.
	ErrNoFreeOperator = errors.New("no free operator available")
	// ErrClientBusy means the client already holds a conversation row.
	ErrClientBusy = errors.New("client already in a conversation")
	// ErrOperatorTaken means a concurrent assignment grabbed the selected operator first.
	ErrOperatorTaken = errors.New("operator taken by a concurrent assignment")
	// ErrRoleViolation means the insert tripped a role check constraint.
	ErrRoleViolation = errors.New("conversation violates role constraints")
)

// Storage is the persistence boundary consumed by the matcher, the relay and
// the bot service. Every method is a single atomic operation; the store's
// transactions and constraints are the only synchronization primitive.
type Storage interface {
	SaveUserIfNotExists(telegramID int64) (*models.User, error)
	GetUserByTelegramID(telegramID int64) (*models.User, error)
	ListAdmins() ([]models.User, error)
	ListOperators() ([]models.User, error)
	SetOperatorRole(telegramID int64, isOperator bool) error
	SetAdminRole(telegramID int64, isAdmin bool) error
	SetOperatorTopics(telegramID int64, topics []string) error

	CreateConversationWithFreeOperator(clientID int64) (*models.Conversation, error)
	GetConversationFor(telegramID int64) (*models.Conversation, error)
	DeleteConversationByClient(clientID int64) (*models.Conversation, error)
	CountActiveConversations() (int64, error)
	CountFreeOperators() (int64, error)

	SaveRelayPair(senderChatID int64, senderMessageID int, receiverChatID int64, receiverMessageID int) error
	ResolveRelayTarget(replyChatID, counterpartChatID int64, repliedToMessageID int) (*int, error)

	SaveFeedback(fb *models.Feedback) error
	ClaimFeedbackOnce(clientID int64, endedAt int64) (bool, error)
	ReleaseFeedbackClaim(clientID int64, endedAt int64) error
	FeedbackSummary() (map[string]int64, error)

	PublishEvent(ev models.Event) error
}

// Service implements Storage on top of PostgreSQL (via GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUserIfNotExists registers an identity on first contact. Repeated calls
// for the same Telegram id are no-ops and return the existing row, so the
// LocalID sequence is consumed exactly once per identity.
func (s *Service) SaveUserIfNotExists(telegramID int64) (*models.User, error) {
	var user models.User
	result := s.DB.Where("telegram_id = ?", telegramID).
		FirstOrCreate(&user, models.User{TelegramID: telegramID})
	if result.Error != nil {
		log.Printf("ERROR: Failed to save user %d on first contact: %v", telegramID, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user registered (local #%d)", user.LocalID)
	}
	return &user, nil
}

// GetUserByTelegramID returns the user row, or nil without error when the
// identity has never contacted the bot.
func (s *Service) GetUserByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	err := s.DB.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAdmins returns every identity flagged as admin. Order is irrelevant.
func (s *Service) ListAdmins() ([]models.User, error) {
	var admins []models.User
	if err := s.DB.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// ListOperators returns every identity with the operator role.
func (s *Service) ListOperators() ([]models.User, error) {
	var operators []models.User
	if err := s.DB.Where("is_operator = ?", true).Find(&operators).Error; err != nil {
		return nil, err
	}
	return operators, nil
}

// SetOperatorRole flips the operator flag. The user row must already exist.
func (s *Service) SetOperatorRole(telegramID int64, isOperator bool) error {
	return s.updateUserFlag(telegramID, "is_operator", isOperator)
}

// SetAdminRole flips the admin flag. The user row must already exist.
func (s *Service) SetAdminRole(telegramID int64, isAdmin bool) error {
	return s.updateUserFlag(telegramID, "is_admin", isAdmin)
}

func (s *Service) updateUserFlag(telegramID int64, column string, value bool) error {
	result := s.DB.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetOperatorTopics replaces the operator's topic tags.
func (s *Service) SetOperatorTopics(telegramID int64, topics []string) error {
	result := s.DB.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("topics", pq.StringArray(topics))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateConversationWithFreeOperator selects one free operator uniformly at
// random and creates the conversation row, all inside a single transaction.
// The row lock (FOR UPDATE SKIP LOCKED) makes concurrent assignments skip an
// operator another transaction is in the middle of taking, so two callers can
// never end up with the same operator. Constraint violations on commit are
// reclassified into the sentinel errors above.
func (s *Service) CreateConversationWithFreeOperator(clientID int64) (*models.Conversation, error) {
	conv := &models.Conversation{ClientID: clientID, StartedAt: time.Now()}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var operatorID int64
		row := tx.Raw(`
			SELECT telegram_id FROM users
			WHERE is_operator
			  AND telegram_id <> ?
			  AND telegram_id NOT IN (SELECT client_id FROM conversations)
			  AND telegram_id NOT IN (SELECT operator_id FROM conversations)
			ORDER BY random()
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, clientID).Row()
		if err := row.Scan(&operatorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoFreeOperator
			}
			return err
		}
		conv.OperatorID = operatorID
		if err := tx.Create(conv).Error; err != nil {
			return classifyAssignError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// classifyAssignError maps storage constraint violations onto the sentinel
// errors. An unrecognized violation stays a raw error so it is reported, not
// silently remapped.
func classifyAssignError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "operator") {
				return ErrOperatorTaken
			}
			return ErrClientBusy
		case "23514": // check_violation
			return ErrRoleViolation
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrClientBusy
	}
	return err
}

// GetConversationFor finds the active conversation containing the identity in
// either role. Absence is a valid outcome and returns nil without error.
func (s *Service) GetConversationFor(telegramID int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("client_id = ? OR operator_id = ?", telegramID, telegramID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find conversation for %d: %v", telegramID, err)
		return nil, err
	}
	return &conv, nil
}

// DeleteConversationByClient removes the conversation where the identity is
// the client and returns the removed row. When no such row exists it returns
// nil without error (ending twice is a no-op). Lookup and delete share one
// transaction so the returned operator id matches the deleted row.
func (s *Service) DeleteConversationByClient(clientID int64) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).First(&conv).Error; err != nil {
			return err
		}
		return tx.Where("client_id = ?", clientID).Delete(&models.Conversation{}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CountActiveConversations returns the number of active pairings.
func (s *Service) CountActiveConversations() (int64, error) {
	var n int64
	err := s.DB.Model(&models.Conversation{}).Count(&n).Error
	return n, err
}

// CountFreeOperators counts operators currently absent from the conversations
// table in both roles. Derived on demand, never cached.
func (s *Service) CountFreeOperators() (int64, error) {
	var n int64
	err := s.DB.Model(&models.User{}).
		Where("is_operator").
		Where("telegram_id NOT IN (SELECT client_id FROM conversations)").
		Where("telegram_id NOT IN (SELECT operator_id FROM conversations)").
		Count(&n).Error
	return n, err
}

// SaveRelayPair appends the two symmetric relay records for one delivered
// message. Both rows land in one transaction so a reply from either side
// resolves, or neither does.
func (s *Service) SaveRelayPair(senderChatID int64, senderMessageID int, receiverChatID int64, receiverMessageID int) error {
	records := []models.RelayRecord{
		{
			SenderChatID:      senderChatID,
			SenderMessageID:   senderMessageID,
			ReceiverChatID:    receiverChatID,
			ReceiverMessageID: receiverMessageID,
		},
		{
			SenderChatID:      receiverChatID,
			SenderMessageID:   receiverMessageID,
			ReceiverChatID:    senderChatID,
			ReceiverMessageID: senderMessageID,
		},
	}
	if err := s.DB.Create(&records).Error; err != nil {
		log.Printf("ERROR: Failed to save relay pair %d/%d -> %d/%d: %v",
			senderChatID, senderMessageID, receiverChatID, receiverMessageID, err)
		return err
	}
	return nil
}

// ResolveRelayTarget maps a replied-to message in the replying chat back to
// its counterpart copy. Returns nil without error when the replied-to message
// was never a relayed message in this thread.
func (s *Service) ResolveRelayTarget(replyChatID, counterpartChatID int64, repliedToMessageID int) (*int, error) {
	var record models.RelayRecord
	err := s.DB.Where("sender_chat_id = ? AND sender_message_id = ? AND receiver_chat_id = ?",
		replyChatID, repliedToMessageID, counterpartChatID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record.ReceiverMessageID, nil
}

// SaveFeedback stores one anonymous rating row.
func (s *Service) SaveFeedback(fb *models.Feedback) error {
	if err := s.DB.Create(fb).Error; err != nil {
		log.Printf("ERROR: Failed to save feedback for operator #%d: %v", fb.OperatorLocalID, err)
		return err
	}
	return nil
}

// ClaimFeedbackOnce reserves the (client, endedAt) feedback slot in Redis.
// Returns false when the slot was already claimed, so repeated taps on the
// same keyboard record a single rating.
func (s *Service) ClaimFeedbackOnce(clientID int64, endedAt int64) (bool, error) {
	key := feedbackClaimKey(clientID, endedAt)
	return s.Redis.SetNX(s.Ctx, key, "1", feedbackClaimTTL).Result()
}

// ReleaseFeedbackClaim frees a claimed slot again, so a rating that failed to
// persist can be retried instead of answering "duplicate" forever.
func (s *Service) ReleaseFeedbackClaim(clientID int64, endedAt int64) error {
	return s.Redis.Del(s.Ctx, feedbackClaimKey(clientID, endedAt)).Err()
}

// FeedbackSummary returns rating counts grouped by mood.
func (s *Service) FeedbackSummary() (map[string]int64, error) {
	type moodCount struct {
		Mood  string
		Count int64
	}
	var rows []moodCount
	err := s.DB.Model(&models.Feedback{}).
		Select("mood, count(*) as count").
		Group("mood").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int64, len(rows))
	for _, r := range rows {
		summary[r.Mood] = r.Count
	}
	return summary, nil
}
