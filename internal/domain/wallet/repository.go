package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const (
	queryTimeout    = 3 * time.Second
	transferTimeout = 5 * time.Second
)

// GetBalance reads the account balance from the user row.
func (r *Repository) GetBalance(ctx context.Context, tenantID, userID uuid.UUID) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance decimal.Decimal
	query := `SELECT balance FROM users WHERE tenant_id = $1 AND id = $2`
	err := r.db.GetContext(ctx, &balance, query, tenantID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// GetStats aggregates sent/received totals across the user's ledger rows.
// Hidden flags do not affect stats.
func (r *Repository) GetStats(ctx context.Context, tenantID, userID uuid.UUID) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stats Stats
	query := `
		SELECT
			COUNT(*) FILTER (WHERE sender_id = $2)                      AS sent_count,
			COALESCE(SUM(amount) FILTER (WHERE sender_id = $2), 0)      AS sent_total,
			COUNT(*) FILTER (WHERE receiver_id = $2)                    AS received_count,
			COALESCE(SUM(amount) FILTER (WHERE receiver_id = $2), 0)    AS received_total
		FROM ledger_transactions
		WHERE tenant_id = $1 AND (sender_id = $2 OR receiver_id = $2)`
	err := r.db.GetContext(ctx, &stats, query, tenantID, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// Transfer atomically moves amount from sender to receiver and records the
// ledger row, all in one transaction.
func (r *Repository) Transfer(ctx context.Context, tenantID, senderID, receiverID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	txn, err := r.TransferTx(ctx, tx, tenantID, senderID, receiverID, amount, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return txn, nil
}

// TransferTx performs a transfer inside a caller-managed transaction so that
// workflows can flip state and move funds atomically. Both account rows are
// locked in id order to keep concurrent transfers deadlock-free.
func (r *Repository) TransferTx(ctx context.Context, tx *sqlx.Tx, tenantID, senderID, receiverID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	type accountRow struct {
		ID      uuid.UUID       `db:"id"`
		Balance decimal.Decimal `db:"balance"`
	}
	var accounts []accountRow
	lockQuery := `
		SELECT id, balance FROM users
		WHERE tenant_id = $1 AND id IN ($2, $3)
		ORDER BY id
		FOR UPDATE`
	if err := tx.SelectContext(ctx, &accounts, lockQuery, tenantID, senderID, receiverID); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	if len(accounts) != 2 {
		return nil, ErrAccountNotFound
	}

	for _, acc := range accounts {
		if acc.ID == senderID && acc.Balance.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
	}

	debit := `UPDATE users SET balance = balance - $1 WHERE tenant_id = $2 AND id = $3`
	if _, err := tx.ExecContext(ctx, debit, amount, tenantID, senderID); err != nil {
		return nil, fmt.Errorf("debit sender: %w", err)
	}
	credit := `UPDATE users SET balance = balance + $1 WHERE tenant_id = $2 AND id = $3`
	if _, err := tx.ExecContext(ctx, credit, amount, tenantID, receiverID); err != nil {
		return nil, fmt.Errorf("credit receiver: %w", err)
	}

	// Time-ordered ids keep id DESC cursor pagination consistent with
	// insertion order.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate transaction id: %w", err)
	}

	txn := &Transaction{
		ID:          id,
		TenantID:    tenantID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Amount:      amount,
		Description: description,
	}
	insert := `
		INSERT INTO ledger_transactions (id, tenant_id, sender_id, receiver_id, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err = tx.QueryRowxContext(ctx, insert, txn.ID, txn.TenantID, txn.SenderID, txn.ReceiverID, txn.Amount, txn.Description).
		Scan(&txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger row: %w", err)
	}
	return txn, nil
}

// ListTransactions returns a cursor-paginated page of the user's ledger
// history, newest first, excluding rows the user has hidden. The returned
// cursor is zero when there are no further pages.
func (r *Repository) ListTransactions(ctx context.Context, tenantID, userID uuid.UUID, filter TransactionFilter) ([]Transaction, uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var visibility string
	switch filter.Direction {
	case DirectionSent:
		visibility = `sender_id = $2 AND NOT hidden_by_sender`
	case DirectionReceived:
		visibility = `receiver_id = $2 AND NOT hidden_by_receiver`
	default:
		visibility = `((sender_id = $2 AND NOT hidden_by_sender) OR (receiver_id = $2 AND NOT hidden_by_receiver))`
	}

	query := `
		SELECT id, tenant_id, sender_id, receiver_id, amount, description,
		       hidden_by_sender, hidden_by_receiver, created_at
		FROM ledger_transactions
		WHERE tenant_id = $1 AND ` + visibility
	args := []interface{}{tenantID, userID}

	if filter.Cursor != uuid.Nil {
		query += fmt.Sprintf(` AND id < $%d`, len(args)+1)
		args = append(args, filter.Cursor)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	transactions := []Transaction{}
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, uuid.Nil, fmt.Errorf("list transactions: %w", err)
	}

	nextCursor := uuid.Nil
	if len(transactions) > limit {
		transactions = transactions[:limit]
		nextCursor = transactions[limit-1].ID
	}
	return transactions, nextCursor, nil
}

// HideTransaction hides a ledger row from the calling party's history. The
// row itself is never deleted and the other party's view is unaffected.
func (r *Repository) HideTransaction(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE ledger_transactions SET
			hidden_by_sender   = hidden_by_sender OR (sender_id = $3),
			hidden_by_receiver = hidden_by_receiver OR (receiver_id = $3)
		WHERE tenant_id = $1 AND id = $2 AND (sender_id = $3 OR receiver_id = $3)`
	result, err := r.db.ExecContext(ctx, query, tenantID, id, userID)
	if err != nil {
		return fmt.Errorf("hide transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("hide transaction rows: %w", err)
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// IsRetryable reports whether the error is a Postgres serialization or
// deadlock failure worth a single retry.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
