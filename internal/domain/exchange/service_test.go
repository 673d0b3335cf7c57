package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/wallet"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name		string
		requester	string
		provider	string
		maxVariance	float64
		wantStatus	Status
		wantFinal	string
	}{
		{"identical hours", "10", "10", 25, StatusCompleted, "10"},
		{"small divergence uses provider hours", "10", "12", 25, StatusCompleted, "12"},
		{"provider reports fewer", "12", "10", 25, StatusCompleted, "10"},
		{"exactly at tolerance", "9", "12", 25, StatusCompleted, "12"},
		{"just over tolerance", "8.9", "12", 25, StatusDisputed, "0"},
		{"double the hours", "10", "20", 25, StatusDisputed, "0"},
		{"zero tolerance exact match", "5", "5", 0, StatusCompleted, "5"},
		{"zero tolerance any gap", "5", "5.01", 0, StatusDisputed, "0"},
		{"fractional hours within band", "2.25", "2.50", 25, StatusCompleted, "2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := decimal.RequireFromString(tt.requester)
			p := decimal.RequireFromString(tt.provider)
			status, final := reconcile(r, p, tt.maxVariance)
			if status != tt.wantStatus {
				t.Errorf("status = %s, want %s", status, tt.wantStatus)
			}
			if !final.Equal(decimal.RequireFromString(tt.wantFinal)) {
				t.Errorf("final hours = %s, want %s", final, tt.wantFinal)
			}
		})
	}
}

// Disputed exchanges never carry final hours; only completed ones do.
func TestReconcileDisputedMovesNothing(t *testing.T) {
	status, final := reconcile(decimal.RequireFromString("1"), decimal.RequireFromString("24"), 25)
	if status != StatusDisputed {
		t.Fatalf("status = %s, want disputed", status)
	}
	if !final.IsZero() {
		t.Errorf("final hours = %s, want 0", final)
	}
}

// With hour adjustment off, a confirmation must restate the proposed hours;
// divergent figures are rejected, never rewritten.
func TestConfirmAdjustmentOff(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	if _, err := db.Exec(`
		INSERT INTO tenant_settings (tenant_id, key, value)
		VALUES ($1, 'exchange_workflow.allow_hour_adjustment', 'false')`, tenantID); err != nil {
		t.Fatalf("seed setting: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM tenant_settings WHERE tenant_id = $1`, tenantID)
	})

	requester := seedUser(t, db, tenantID, "10.00")
	provider := seedUser(t, db, tenantID, "0")
	listingID := seedListing(t, db, tenantID, provider)
	id := seedExchange(t, db, tenantID, listingID, requester, provider, StatusReadyForConfirmation, "2")

	if _, err := svc.Confirm(ctx, tenantID, requester, id, decimal.RequireFromString("3")); !errors.Is(err, ErrAdjustmentOff) {
		t.Fatalf("err = %v, want ErrAdjustmentOff", err)
	}
	if _, err := svc.Confirm(ctx, tenantID, requester, id, decimal.RequireFromString("2")); err != nil {
		t.Fatalf("confirm with proposed hours: %v", err)
	}
}

func TestConfirmBothSettles(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	requester := seedUser(t, db, tenantID, "10.00")
	provider := seedUser(t, db, tenantID, "0")
	listingID := seedListing(t, db, tenantID, provider)
	id := seedExchange(t, db, tenantID, listingID, requester, provider, StatusReadyForConfirmation, "2")

	if _, err := svc.Confirm(ctx, tenantID, requester, id, decimal.RequireFromString("2")); err != nil {
		t.Fatalf("requester confirm: %v", err)
	}
	e, err := svc.Confirm(ctx, tenantID, provider, id, decimal.RequireFromString("2"))
	if err != nil {
		t.Fatalf("provider confirm: %v", err)
	}

	if e.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", e.Status)
	}
	if !e.FinalHours.Valid || !e.FinalHours.Decimal.Equal(decimal.RequireFromString("2")) {
		t.Errorf("final hours = %v, want 2", e.FinalHours)
	}
	if !e.TransactionID.Valid {
		t.Error("transaction id unset, settlement must link the ledger row")
	}
	if got := balanceOf(t, db, requester); !got.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("requester balance = %s, want 8.00", got)
	}
	if got := balanceOf(t, db, provider); !got.Equal(decimal.RequireFromString("2.00")) {
		t.Errorf("provider balance = %s, want 2.00", got)
	}
}

// An underfunded requester aborts the completion: the exchange stays open for
// a retry and no ledger row is written.
func TestConfirmSettlementInsufficientFunds(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	requester := seedUser(t, db, tenantID, "0.50")
	provider := seedUser(t, db, tenantID, "0")
	listingID := seedListing(t, db, tenantID, provider)
	id := seedExchange(t, db, tenantID, listingID, requester, provider, StatusReadyForConfirmation, "2")

	if _, err := svc.Confirm(ctx, tenantID, requester, id, decimal.RequireFromString("2")); err != nil {
		t.Fatalf("requester confirm: %v", err)
	}
	if _, err := svc.Confirm(ctx, tenantID, provider, id, decimal.RequireFromString("2")); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("provider confirm err = %v, want ErrInsufficientFunds", err)
	}

	e, err := svc.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if e.Status != StatusReadyForConfirmation {
		t.Errorf("status = %s, want ready_for_confirmation", e.Status)
	}
	if e.FinalHours.Valid || e.TransactionID.Valid {
		t.Error("final hours or transaction id set on an aborted settlement")
	}

	var ledgerRows int
	if err := db.Get(&ledgerRows, `SELECT COUNT(*) FROM ledger_transactions WHERE sender_id = $1`, requester); err != nil {
		t.Fatalf("count ledger rows: %v", err)
	}
	if ledgerRows != 0 {
		t.Errorf("ledger rows = %d, want 0", ledgerRows)
	}
	if got := balanceOf(t, db, requester); !got.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("requester balance = %s, want 0.50", got)
	}
	if got := balanceOf(t, db, provider); !got.IsZero() {
		t.Errorf("provider balance = %s, want 0", got)
	}
}
