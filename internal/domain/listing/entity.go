package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the read-only catalog entry the exchange workflow attaches to
// requests. The ledger core never mutates listings.
type Listing struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	TenantID  uuid.UUID           `db:"tenant_id" json:"-"`
	OwnerID   uuid.UUID           `db:"owner_id" json:"owner_id"`
	Title     string              `db:"title" json:"title"`
	Type      string              `db:"type" json:"type"`
	Hours     decimal.NullDecimal `db:"hours" json:"hours,omitempty"`
	RiskLevel *string             `db:"risk_level" json:"risk_level,omitempty"`
	CreatedAt time.Time           `db:"created_at" json:"-"`
}
