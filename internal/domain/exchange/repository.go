package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const queryTimeout = 3 * time.Second

const selectColumns = `
	e.id, e.tenant_id, e.listing_id, e.requester_id, e.provider_id,
	e.status, e.proposed_hours, e.final_hours, e.message,
	e.requester_confirmed_at, e.requester_confirmed_hours,
	e.provider_confirmed_at, e.provider_confirmed_hours,
	e.transaction_id, e.ready_at, e.created_at, e.updated_at,
	l.title AS listing_title, l.type AS listing_type,
	req.name AS requester_name, prov.name AS provider_name,
	rt.risk_level AS risk_level`

const selectJoins = `
	FROM exchanges e
	JOIN listings l ON l.id = e.listing_id
	JOIN users req ON req.id = e.requester_id
	JOIN users prov ON prov.id = e.provider_id
	LEFT JOIN listing_risk_tags rt ON rt.listing_id = e.listing_id`

func (r *Repository) Create(ctx context.Context, e *Exchange) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO exchanges (id, tenant_id, listing_id, requester_id, provider_id, status, proposed_hours, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query,
		e.ID, e.TenantID, e.ListingID, e.RequesterID, e.ProviderID,
		e.Status, e.ProposedHours, e.Message,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Exchange
	query := `SELECT ` + selectColumns + selectJoins + ` WHERE e.tenant_id = $1 AND e.id = $2`
	if err := r.db.GetContext(ctx, &e, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	return &e, nil
}

// UpdateStatus flips the status only if the row is still in the expected
// state. Losing the compare-and-set returns ErrConflict.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return updateStatus(ctx, r.db, tenantID, id, from, to)
}

func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, tenantID, id uuid.UUID, from, to Status) error {
	return updateStatus(ctx, tx, tenantID, id, from, to)
}

func updateStatus(ctx context.Context, q sqlx.ExtContext, tenantID, id uuid.UUID, from, to Status) error {
	query := `
		UPDATE exchanges
		SET status = $1,
		    ready_at = CASE WHEN $1 = 'ready_for_confirmation' THEN now() ELSE ready_at END,
		    updated_at = now()
		WHERE tenant_id = $2 AND id = $3 AND status = $4`
	result, err := q.ExecContext(ctx, query, to, tenantID, id, from)
	if err != nil {
		return fmt.Errorf("update exchange status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update exchange status rows: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

// SetConfirmation records one party's confirmed hours. Re-confirming
// overwrites the previous value. The status guard keeps a late confirm from
// touching an exchange a concurrent reconciliation already closed.
func (r *Repository) SetConfirmation(ctx context.Context, tenantID, id uuid.UUID, role ActorRole, hours decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var query string
	switch role {
	case RoleRequester:
		query = `
			UPDATE exchanges
			SET requester_confirmed_at = now(), requester_confirmed_hours = $1, updated_at = now()
			WHERE tenant_id = $2 AND id = $3
			  AND status IN ('in_progress', 'ready_for_confirmation')`
	case RoleProvider:
		query = `
			UPDATE exchanges
			SET provider_confirmed_at = now(), provider_confirmed_hours = $1, updated_at = now()
			WHERE tenant_id = $2 AND id = $3
			  AND status IN ('in_progress', 'ready_for_confirmation')`
	default:
		return fmt.Errorf("set confirmation: unknown role %q", role)
	}

	result, err := r.db.ExecContext(ctx, query, hours, tenantID, id)
	if err != nil {
		return fmt.Errorf("set confirmation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set confirmation rows: %w", err)
	}
	if rows == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *Repository) InsertHistory(ctx context.Context, h *HistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return insertHistory(ctx, r.db, h)
}

func (r *Repository) InsertHistoryTx(ctx context.Context, tx *sqlx.Tx, h *HistoryEntry) error {
	return insertHistory(ctx, tx, h)
}

func insertHistory(ctx context.Context, q sqlx.ExtContext, h *HistoryEntry) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	query := `
		INSERT INTO exchange_history (id, exchange_id, actor_id, actor_role, action, from_status, to_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := q.ExecContext(ctx, query,
		h.ID, h.ExchangeID, h.ActorID, h.ActorRole, h.Action, h.FromStatus, h.ToStatus, h.Notes)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *Repository) History(ctx context.Context, tenantID, exchangeID uuid.UUID) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := []HistoryEntry{}
	query := `
		SELECT h.id, h.exchange_id, h.actor_id, h.actor_role, h.action,
		       h.from_status, h.to_status, h.notes, h.created_at
		FROM exchange_history h
		JOIN exchanges e ON e.id = h.exchange_id
		WHERE e.tenant_id = $1 AND h.exchange_id = $2
		ORDER BY h.created_at ASC, h.id ASC`
	if err := r.db.SelectContext(ctx, &entries, query, tenantID, exchangeID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// ListFilter narrows ListForUser. Status "active" matches every non-terminal
// state.
type ListFilter struct {
	Status string
	Role   string
	Page   int
	Limit  int
}

func (r *Repository) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, filter ListFilter) ([]Exchange, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"e.tenant_id = $1"}
	args := []interface{}{tenantID}

	switch filter.Role {
	case string(RoleRequester):
		where = append(where, fmt.Sprintf("e.requester_id = $%d", len(args)+1))
		args = append(args, userID)
	case string(RoleProvider):
		where = append(where, fmt.Sprintf("e.provider_id = $%d", len(args)+1))
		args = append(args, userID)
	default:
		where = append(where, fmt.Sprintf("(e.requester_id = $%d OR e.provider_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, userID)
	}

	if filter.Status == "active" {
		where = append(where, "e.status IN ('requested', 'accepted', 'in_progress', 'ready_for_confirmation')")
	} else if filter.Status != "" {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*)` + selectJoins + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exchanges: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + selectColumns + selectJoins + whereClause +
		fmt.Sprintf(` ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	exchanges := []Exchange{}
	if err := r.db.SelectContext(ctx, &exchanges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exchanges: %w", err)
	}
	return exchanges, total, nil
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// CompleteTx finalizes an exchange inside a settlement transaction. The
// compare-and-set on ready_for_confirmation guarantees funds move exactly
// once even when both parties reconcile concurrently.
func (r *Repository) CompleteTx(ctx context.Context, tx *sqlx.Tx, tenantID, id uuid.UUID, finalHours decimal.Decimal, transactionID uuid.UUID) error {
	query := `
		UPDATE exchanges
		SET status = 'completed', final_hours = $1, transaction_id = $2, updated_at = now()
		WHERE tenant_id = $3 AND id = $4 AND status = 'ready_for_confirmation'`
	result, err := tx.ExecContext(ctx, query, finalHours, transactionID, tenantID, id)
	if err != nil {
		return fmt.Errorf("complete exchange: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete exchange rows: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}
