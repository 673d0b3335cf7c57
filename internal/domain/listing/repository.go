package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

var ErrNotFound = errors.New("listing not found")

// Repository provides read-only listing lookups.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Listing, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var l Listing
	err := r.db.GetContext(ctx2, &l, `
		SELECT l.id, l.tenant_id, l.owner_id, l.title, l.type, l.hours, l.created_at,
		       rt.risk_level
		FROM listings l
		LEFT JOIN listing_risk_tags rt ON rt.listing_id = l.id
		WHERE l.id = $1 AND l.tenant_id = $2
	`, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}
