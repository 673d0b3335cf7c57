package activity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Service records ledger and workflow events. Recording is fire-and-forget:
// failures are logged and never surfaced to the caller, so a broken sink can
// never roll back a ledger operation.
type Service struct {
	repo  *Repository
	redis *redis.Client
}

func NewService(repo *Repository, redisClient *redis.Client) *Service {
	return &Service{repo: repo, redis: redisClient}
}

// Record writes one event for the given user. Safe to call from a goroutine
// with a background context.
func (s *Service) Record(ctx context.Context, tenantID, userID uuid.UUID, kind string, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("activity payload marshal failed")
		raw = []byte("{}")
	}

	event := &Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		log.Warn().Err(err).Str("kind", kind).Str("user_id", userID.String()).Msg("activity event insert failed")
		return
	}

	s.publish(ctx, event)
}

// RecordAll records the same event for several users.
func (s *Service) RecordAll(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID, kind string, payload map[string]interface{}) {
	for _, id := range userIDs {
		s.Record(ctx, tenantID, id, kind, payload)
	}
}

func (s *Service) publish(ctx context.Context, event *Event) {
	if s.redis == nil {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		return
	}

	channel := "activity:" + event.TenantID.String()
	if err := s.redis.Publish(ctx, channel, msg).Err(); err != nil {
		log.Debug().Err(err).Str("channel", channel).Msg("activity publish failed")
	}
}
