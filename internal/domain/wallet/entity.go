package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger row recording credit moving from one
// account to another. Only the two hidden flags ever change after insert.
type Transaction struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	TenantID         uuid.UUID       `db:"tenant_id" json:"-"`
	SenderID         uuid.UUID       `db:"sender_id" json:"sender_id"`
	ReceiverID       uuid.UUID       `db:"receiver_id" json:"receiver_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Description      string          `db:"description" json:"description"`
	HiddenBySender   bool            `db:"hidden_by_sender" json:"-"`
	HiddenByReceiver bool            `db:"hidden_by_receiver" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// Stats summarizes a user's ledger activity.
type Stats struct {
	SentCount     int             `db:"sent_count" json:"sent_count"`
	SentTotal     decimal.Decimal `db:"sent_total" json:"sent_total"`
	ReceivedCount int             `db:"received_count" json:"received_count"`
	ReceivedTotal decimal.Decimal `db:"received_total" json:"received_total"`
}

// Balance is the read model returned by GetBalance.
type Balance struct {
	Balance decimal.Decimal `json:"balance"`
	Stats   Stats           `json:"stats"`
}

// Direction filters transaction history by the caller's side.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionAll      Direction = "all"
)

// TransactionFilter controls ListTransactions. A nil cursor means first page.
type TransactionFilter struct {
	Direction Direction
	Cursor    uuid.UUID
	Limit     int
}

// ValidAmount reports whether the amount is positive and carries at most
// two decimal places.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}
