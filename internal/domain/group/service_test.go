package group

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/user"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, tenantID uuid.UUID, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, tenant_id, name, handle, email, balance)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, tenantID, "Member "+id.String()[:8], "m_"+id.String()[:8],
		id.String()[:8]+"@example.com", balance)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM ledger_transactions WHERE sender_id = $1 OR receiver_id = $1`, id)
		db.Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func newService(db *sqlx.DB) *Service {
	users := user.NewRepository(db)
	resolver := user.NewResolver(users)
	activitySvc := activity.NewService(activity.NewRepository(db), nil)
	walletSvc := wallet.NewService(wallet.NewRepository(db), users, resolver, activitySvc)
	return NewService(NewRepository(db), users, walletSvc, activitySvc)
}

func seedGroup(t *testing.T, svc *Service, db *sqlx.DB, tenantID, organizer uuid.UUID, members []ParticipantInput) uuid.UUID {
	t.Helper()
	e, _, err := svc.Create(context.Background(), tenantID, organizer, CreateInput{
		Title:        "Garden cleanup",
		SplitType:    "equal",
		TotalHours:   decimal.RequireFromString("4"),
		Participants: members,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM group_exchange_participants WHERE exchange_id = $1`, e.ID)
		db.Exec(`DELETE FROM group_exchanges WHERE id = $1`, e.ID)
	})
	return e.ID
}

func balanceOf(t *testing.T, db *sqlx.DB, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	if err := db.Get(&b, `SELECT balance FROM users WHERE id = $1`, id); err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b
}

func runToPending(t *testing.T, svc *Service, tenantID, organizer, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Activate(ctx, tenantID, organizer, id); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.RequestConfirmation(ctx, tenantID, organizer, id); err != nil {
		t.Fatalf("request confirmation: %v", err)
	}
	participants, err := svc.repo.ListParticipants(ctx, id)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	for _, p := range participants {
		if err := svc.Confirm(ctx, tenantID, p.UserID, id); err != nil {
			t.Fatalf("confirm %s: %v", p.UserID, err)
		}
	}
}

func TestGroupSettlement(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	organizer := seedUser(t, db, tenantID, "0")
	provider := seedUser(t, db, tenantID, "0")
	payer1 := seedUser(t, db, tenantID, "10.00")
	payer2 := seedUser(t, db, tenantID, "10.00")

	id := seedGroup(t, svc, db, tenantID, organizer, []ParticipantInput{
		{UserID: provider.String(), Role: "provider"},
		{UserID: payer1.String(), Role: "receiver"},
		{UserID: payer2.String(), Role: "receiver"},
	})
	runToPending(t, svc, tenantID, organizer, id)

	transactionIDs, err := svc.Complete(ctx, tenantID, organizer, id)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(transactionIDs) != 2 {
		t.Errorf("got %d transfers, want 2", len(transactionIDs))
	}
	if got := balanceOf(t, db, provider); !got.Equal(decimal.RequireFromString("4")) {
		t.Errorf("provider balance = %s, want 4", got)
	}
	if got := balanceOf(t, db, payer1); !got.Equal(decimal.RequireFromString("8")) {
		t.Errorf("payer1 balance = %s, want 8", got)
	}

	// Settles exactly once.
	if _, err := svc.Complete(ctx, tenantID, organizer, id); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second complete err = %v, want ErrInvalidState", err)
	}
}

// One underfunded payer must abort the whole settlement with no partial
// transfers.
func TestGroupSettlementAllOrNothing(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	organizer := seedUser(t, db, tenantID, "0")
	provider := seedUser(t, db, tenantID, "0")
	funded := seedUser(t, db, tenantID, "10.00")
	broke := seedUser(t, db, tenantID, "0.50")

	id := seedGroup(t, svc, db, tenantID, organizer, []ParticipantInput{
		{UserID: provider.String(), Role: "provider"},
		{UserID: funded.String(), Role: "receiver"},
		{UserID: broke.String(), Role: "receiver"},
	})
	runToPending(t, svc, tenantID, organizer, id)

	_, err := svc.Complete(ctx, tenantID, organizer, id)
	var settlementErr *SettlementError
	if !errors.As(err, &settlementErr) {
		t.Fatalf("err = %v, want SettlementError", err)
	}
	if settlementErr.PayerID != broke {
		t.Errorf("blocking payer = %s, want %s", settlementErr.PayerID, broke)
	}
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Errorf("expected wrapped ErrInsufficientFunds, got %v", err)
	}

	// Nothing moved and the exchange is still open.
	if got := balanceOf(t, db, funded); !got.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("funded payer balance = %s, want 10.00", got)
	}
	if got := balanceOf(t, db, provider); !got.IsZero() {
		t.Errorf("provider balance = %s, want 0", got)
	}
	e, err := svc.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if e.Status != StatusPendingConfirmation {
		t.Errorf("status = %s, want pending_confirmation", e.Status)
	}
}

func TestGroupMembershipChangeClearsConfirmations(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	ctx := context.Background()
	tenantID := uuid.New()

	organizer := seedUser(t, db, tenantID, "0")
	provider := seedUser(t, db, tenantID, "0")
	payer := seedUser(t, db, tenantID, "10.00")
	late := seedUser(t, db, tenantID, "10.00")

	id := seedGroup(t, svc, db, tenantID, organizer, []ParticipantInput{
		{UserID: provider.String(), Role: "provider"},
		{UserID: payer.String(), Role: "receiver"},
	})
	runToPending(t, svc, tenantID, organizer, id)

	if err := svc.AddParticipant(ctx, tenantID, organizer, id, ParticipantInput{
		UserID: late.String(), Role: "receiver",
	}); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	if _, err := svc.Complete(ctx, tenantID, organizer, id); !errors.Is(err, ErrUnconfirmedParticipants) {
		t.Errorf("complete err = %v, want ErrUnconfirmedParticipants", err)
	}
}
