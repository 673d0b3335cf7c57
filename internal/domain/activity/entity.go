package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded by the ledger core.
const (
	KindTransferSent		= "transfer_sent"
	KindTransferReceived		= "transfer_received"
	KindExchangeRequested		= "exchange_requested"
	KindExchangeAccepted		= "exchange_accepted"
	KindExchangeDeclined		= "exchange_declined"
	KindExchangeStarted		= "exchange_started"
	KindExchangeReadyConfirm	= "exchange_ready_confirmation"
	KindExchangeCompleted		= "exchange_completed"
	KindExchangeDisputed		= "exchange_disputed"
	KindExchangeCancelled		= "exchange_cancelled"
	KindGroupExchangeUpdated	= "group_exchange_updated"
	KindGroupExchangeSettled	= "group_exchange_settled"
	KindGroupExchangeCancelled	= "group_exchange_cancelled"
)

// Event is an activity-log row. Append-only, written fire-and-forget.
type Event struct {
	ID		uuid.UUID	`db:"id" json:"id"`
	TenantID	uuid.UUID	`db:"tenant_id" json:"-"`
	UserID		uuid.UUID	`db:"user_id" json:"user_id"`
	Kind		string		`db:"kind" json:"kind"`
	Payload		json.RawMessage	`db:"payload" json:"payload"`
	CreatedAt	time.Time	`db:"created_at" json:"created_at"`
}
