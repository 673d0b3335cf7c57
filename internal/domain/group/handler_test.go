package group

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hourbank/hourbank-api/internal/middleware"
)

func testAuth(userID, tenantID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			ctx = context.WithValue(ctx, middleware.TenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Responses carry a single {success, data} envelope; the exchange body sits
// directly under data.
func TestAddParticipantEnvelope(t *testing.T) {
	db := testDB(t)
	svc := newService(db)
	tenantID := uuid.New()

	organizer := seedUser(t, db, tenantID, "0")
	provider := seedUser(t, db, tenantID, "0")
	late := seedUser(t, db, tenantID, "10.00")

	id := seedGroup(t, svc, db, tenantID, organizer, []ParticipantInput{
		{UserID: provider.String(), Role: "provider"},
	})

	router := NewHandler(svc).Routes(testAuth(organizer, tenantID))
	body := `{"user_id": "` + late.String() + `", "role": "receiver"}`
	req := httptest.NewRequest(http.MethodPost, "/"+id.String()+"/participants", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !envelope.Success {
		t.Error("success = false, want true")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if _, ok := data["id"]; !ok {
		t.Error("data.id missing, exchange body must sit directly under data")
	}
	if _, nested := data["data"]; nested {
		t.Error("data.data present, envelope is wrapped twice")
	}
}
