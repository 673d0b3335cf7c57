package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	queryTimeout = 3 * time.Second
	cacheTTL     = 5 * time.Minute
)

// Repository reads per-tenant workflow settings from tenant_settings
// key/value rows, falling back to configured defaults. Results are cached in
// Redis with a short TTL; a missing or broken cache is tolerated.
type Repository struct {
	db       *sqlx.DB
	redis    *redis.Client
	defaults Workflow
}

func NewRepository(db *sqlx.DB, redisClient *redis.Client, defaults Workflow) *Repository {
	return &Repository{db: db, redis: redisClient, defaults: defaults}
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Workflow returns the effective workflow settings for a tenant.
func (r *Repository) Workflow(ctx context.Context, tenantID uuid.UUID) (Workflow, error) {
	cacheKey := "tenant_settings:workflow:" + tenantID.String()

	if r.redis != nil {
		if raw, err := r.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Workflow
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]settingRow, 0)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT key, value FROM tenant_settings
		WHERE tenant_id = $1 AND key LIKE 'exchange_workflow.%'
	`, tenantID)
	if err != nil {
		return r.defaults, fmt.Errorf("load tenant settings: %w", err)
	}

	w := r.defaults
	for _, row := range rows {
		applySetting(&w, row.Key, row.Value)
	}

	if r.redis != nil {
		if raw, err := json.Marshal(w); err == nil {
			if err := r.redis.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("tenant_id", tenantID.String()).Msg("settings cache write failed")
			}
		}
	}

	return w, nil
}

func applySetting(w *Workflow, key, value string) {
	switch key {
	case "exchange_workflow.max_hour_variance_percent":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			w.MaxHourVariancePercent = f
		}
	case "exchange_workflow.allow_hour_adjustment":
		if b, err := strconv.ParseBool(value); err == nil {
			w.AllowHourAdjustment = b
		}
	case "exchange_workflow.confirmation_deadline_hours":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			w.ConfirmationDeadlineHours = n
		}
	case "exchange_workflow.min_proposed_hours":
		if d, err := decimal.NewFromString(value); err == nil && d.IsPositive() {
			w.MinProposedHours = d
		}
	case "exchange_workflow.max_proposed_hours":
		if d, err := decimal.NewFromString(value); err == nil && d.IsPositive() {
			w.MaxProposedHours = d
		}
	}
}
