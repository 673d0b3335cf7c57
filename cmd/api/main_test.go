package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hourbank/hourbank-api/internal/config"
	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/exchange"
	"github.com/hourbank/hourbank-api/internal/domain/group"
	"github.com/hourbank/hourbank-api/internal/domain/listing"
	"github.com/hourbank/hourbank-api/internal/domain/settings"
	"github.com/hourbank/hourbank-api/internal/domain/user"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
	"github.com/hourbank/hourbank-api/internal/pkg/jwt"
)

// Builds the full route tree without touching the database; handlers are
// never reached.
func testRouter() http.Handler {
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	jwtService := jwt.NewService("test-secret", time.Hour)

	userRepo := user.NewRepository(nil)
	resolver := user.NewResolver(userRepo)
	activityService := activity.NewService(activity.NewRepository(nil), nil)
	walletService := wallet.NewService(wallet.NewRepository(nil), userRepo, resolver, activityService)
	settingsRepo := settings.NewRepository(nil, nil, settings.DefaultWorkflow())
	exchangeService := exchange.NewService(exchange.NewRepository(nil), listing.NewRepository(nil), walletService, settingsRepo, activityService)
	groupService := group.NewService(group.NewRepository(nil), userRepo, walletService, activityService)

	return newRouter(cfg, jwtService,
		wallet.NewHandler(walletService),
		exchange.NewHandler(exchangeService),
		group.NewHandler(groupService),
		activity.NewHandler(activity.NewRepository(nil)))
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := testRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/wallet/balance"},
		{http.MethodPost, "/api/v1/wallet/transfer"},
		{http.MethodGet, "/api/v1/exchanges"},
		{http.MethodPost, "/api/v1/exchanges"},
		{http.MethodGet, "/api/v1/group-exchanges"},
	}
	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}
