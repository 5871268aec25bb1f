package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"helpline/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	// eventChannel is the Redis pub/sub channel the monitor feed listens on.
	eventChannel = "helpline:events"

	// feedbackClaimTTL bounds how long a conversation's feedback slot stays
	// reserved. Long enough that a keyboard can't be reused, short enough
	// that Redis does not accumulate keys forever.
	feedbackClaimTTL = 30 * 24 * time.Hour
)

func feedbackClaimKey(clientID int64, endedAt int64) string {
	return fmt.Sprintf("helpline:fb:%d:%d", clientID, endedAt)
}

// PublishEvent pushes an anonymized lifecycle event to the monitor channel.
// Failures are logged by callers; the feed is best-effort and never blocks
// the state change that produced the event.
func (s *Service) PublishEvent(ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventChannel, string(payload)).Err()
}

// SubscribeEvents opens a pub/sub subscription on the monitor channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, eventChannel)
}
