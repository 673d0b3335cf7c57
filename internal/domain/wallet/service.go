package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/user"
)

type Service struct {
	repo     *Repository
	users    *user.Repository
	resolver *user.Resolver
	activity *activity.Service
}

func NewService(repo *Repository, users *user.Repository, resolver *user.Resolver, activitySvc *activity.Service) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		resolver: resolver,
		activity: activitySvc,
	}
}

func (s *Service) GetBalance(ctx context.Context, tenantID, userID uuid.UUID) (*Balance, error) {
	balance, err := s.repo.GetBalance(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.GetStats(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return &Balance{Balance: balance, Stats: stats}, nil
}

// Transfer validates and executes a direct credit transfer. The recipient
// reference may be a user id, email, or handle. A transfer that loses a lock
// race is retried once before surfacing a conflict.
func (s *Service) Transfer(ctx context.Context, tenantID, senderID uuid.UUID, recipientRef string, amount decimal.Decimal, description string) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	recipient, err := s.resolver.Resolve(ctx, tenantID, strings.TrimSpace(recipientRef))
	if err != nil {
		return nil, ErrRecipientNotFound
	}
	if recipient.ID == senderID {
		return nil, ErrSelfTransfer
	}

	txn, err := s.repo.Transfer(ctx, tenantID, senderID, recipient.ID, amount, description)
	if err != nil && IsRetryable(err) {
		log.Warn().Err(err).
			Str("sender_id", senderID.String()).
			Str("receiver_id", recipient.ID.String()).
			Msg("transfer conflicted, retrying once")
		txn, err = s.repo.Transfer(ctx, tenantID, senderID, recipient.ID, amount, description)
	}
	if err != nil {
		if IsRetryable(err) {
			return nil, ErrTransferConflict
		}
		return nil, err
	}

	log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("sender_id", senderID.String()).
		Str("receiver_id", recipient.ID.String()).
		Str("amount", amount.String()).
		Msg("transfer completed")

	go s.recordTransfer(txn)

	return txn, nil
}

// TransferTx runs validation and the transfer inside a caller-managed
// transaction. Used by workflows that settle funds together with a state
// change.
func (s *Service) TransferTx(ctx context.Context, tx *sqlx.Tx, tenantID, senderID, receiverID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}
	return s.repo.TransferTx(ctx, tx, tenantID, senderID, receiverID, amount, description)
}

func (s *Service) ListTransactions(ctx context.Context, tenantID, userID uuid.UUID, filter TransactionFilter) ([]Transaction, uuid.UUID, error) {
	switch filter.Direction {
	case DirectionSent, DirectionReceived, DirectionAll, "":
	default:
		filter.Direction = DirectionAll
	}
	return s.repo.ListTransactions(ctx, tenantID, userID, filter)
}

func (s *Service) HideTransaction(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return s.repo.HideTransaction(ctx, tenantID, userID, id)
}

// SearchRecipients finds transfer targets by partial name, handle, or email,
// excluding the caller.
func (s *Service) SearchRecipients(ctx context.Context, tenantID, callerID uuid.UUID, query string, limit int) ([]user.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []user.User{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.users.Search(ctx, tenantID, callerID, query, limit)
}

func (s *Service) recordTransfer(txn *Transaction) {
	ctx := context.Background()
	payload := map[string]interface{}{
		"transaction_id": txn.ID,
		"sender_id":      txn.SenderID,
		"receiver_id":    txn.ReceiverID,
		"amount":         txn.Amount,
	}
	s.activity.Record(ctx, txn.TenantID, txn.SenderID, activity.KindTransferSent, payload)
	s.activity.Record(ctx, txn.TenantID, txn.ReceiverID, activity.KindTransferReceived, payload)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: got %s", ErrAmountPrecision, amount.String())
	}
	return nil
}
