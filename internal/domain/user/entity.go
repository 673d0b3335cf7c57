package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the member record as the ledger core sees it. The balance column
// lives here but is mutated only by the wallet repository.
type User struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	TenantID  uuid.UUID       `db:"tenant_id" json:"-"`
	Name      string          `db:"name" json:"name"`
	Handle    string          `db:"handle" json:"handle"`
	Email     string          `db:"email" json:"email"`
	AvatarURL *string         `db:"avatar_url" json:"avatar_url,omitempty"`
	Balance   decimal.Decimal `db:"balance" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}
