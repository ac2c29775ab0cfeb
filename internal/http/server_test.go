package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lumina/internal/core"
	"lumina/internal/gemini"
	"lumina/internal/ledger"
)

type memRepo struct {
	txs   []core.Transaction
	found bool
}

func (r *memRepo) Load(ctx context.Context) ([]core.Transaction, bool, error) {
	return r.txs, r.found, nil
}

func (r *memRepo) Save(ctx context.Context, txs []core.Transaction) error {
	r.txs = append([]core.Transaction(nil), txs...)
	r.found = true
	return nil
}

type fakeParser struct {
	tx  core.Transaction
	err error
}

func (p *fakeParser) ParseTransaction(ctx context.Context, input string) (core.Transaction, error) {
	return p.tx, p.err
}

type fakeAdvisor struct {
	advice string
	calls  int
}

func (a *fakeAdvisor) GenerateAdvice(ctx context.Context, txs []core.Transaction) string {
	a.calls++
	return a.advice
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := ledger.NewStore(&memRepo{}, nil)
	store.Load(context.Background())
	srv := NewServer(":0", store, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestListTransactionsSortedNewestFirst(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var txs []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("expected 4 seed transactions, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i-1].Date.Before(txs[i].Date.Time) {
			t.Errorf("transactions not sorted newest first at index %d", i)
		}
	}
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	body := []byte(`{"amount": 9.99, "category": "Food", "date": "2023-11-01", "type": "EXPENSE"}`)
	rec := doRequest(srv, http.MethodPost, "/api/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var tx core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tx.ID == "" {
		t.Error("expected generated id")
	}
	if tx.Currency != core.DefaultCurrency {
		t.Errorf("expected default currency, got %q", tx.Currency)
	}
	if tx.Merchant != core.DefaultMerchant {
		t.Errorf("expected default merchant, got %q", tx.Merchant)
	}
	if tx.Amount.Cents != 999 {
		t.Errorf("expected 999 cents, got %d", tx.Amount.Cents)
	}
	if srv.store.Len() != 5 {
		t.Errorf("expected 5 transactions in store, got %d", srv.store.Len())
	}
}

func TestCreateTransactionRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"missing amount", `{"category": "Food", "date": "2023-11-01", "type": "EXPENSE"}`, http.StatusUnprocessableEntity},
		{"missing category", `{"amount": 5, "date": "2023-11-01", "type": "EXPENSE"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"amount": 5, "category": "Food", "date": "2023-11-01", "type": "TRANSFER"}`, http.StatusUnprocessableEntity},
		{"duplicate id", `{"id": "1", "amount": 5, "category": "Food", "date": "2023-11-01", "type": "EXPENSE"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{})
			rec := doRequest(srv, http.MethodPost, "/api/transactions", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if srv.store.Len() != 4 {
				t.Errorf("store should be unchanged, got %d transactions", srv.store.Len())
			}
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodDelete, "/api/transactions/2", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if srv.store.Len() != 3 {
		t.Errorf("expected 3 transactions after delete, got %d", srv.store.Len())
	}

	// Deleting an unknown id is a no-op but still succeeds.
	rec = doRequest(srv, http.MethodDelete, "/api/transactions/does-not-exist", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown id, got %d", rec.Code)
	}
	if srv.store.Len() != 3 {
		t.Errorf("expected store unchanged, got %d", srv.store.Len())
	}
}

func TestDeleteRequiresDeleteMethod(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/transactions/1", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestParseTransaction(t *testing.T) {
	parsed := core.Transaction{
		Amount:   core.Money{Cents: 550},
		Currency: "USD",
		Category: "Food",
		Merchant: "Cafe",
		Date:     core.NewDate(2023, 11, 2),
		Notes:    "coffee 5.50",
		Type:     core.Expense,
	}
	srv := newTestServer(t, Options{Parser: &fakeParser{tx: parsed}})

	rec := doRequest(srv, http.MethodPost, "/api/transactions/parse", []byte(`{"text": "coffee 5.50"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var tx core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tx.ID == "" {
		t.Error("expected generated id")
	}
	if srv.store.Len() != 5 {
		t.Errorf("expected 5 transactions, got %d", srv.store.Len())
	}
}

func TestParseTransactionNoResult(t *testing.T) {
	srv := newTestServer(t, Options{Parser: &fakeParser{err: fmt.Errorf("extract: %w", gemini.ErrNoResult)}})

	rec := doRequest(srv, http.MethodPost, "/api/transactions/parse", []byte(`{"text": "hello"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if srv.store.Len() != 4 {
		t.Errorf("store should be unchanged, got %d", srv.store.Len())
	}
}

func TestParseTransactionUnavailable(t *testing.T) {
	srv := newTestServer(t, Options{Parser: &fakeParser{err: errors.New("connection refused")}})

	rec := doRequest(srv, http.MethodPost, "/api/transactions/parse", []byte(`{"text": "coffee 5.50"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if srv.store.Len() != 4 {
		t.Errorf("store should be unchanged, got %d", srv.store.Len())
	}
}

func TestParseTransactionNotConfigured(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodPost, "/api/transactions/parse", []byte(`{"text": "coffee"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without parser, got %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sum struct {
		TotalBalance json.Number `json:"total_balance"`
		TotalIncome  json.Number `json:"total_income"`
		TotalExpense json.Number `json:"total_expense"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalBalance.String() != "3022.5" {
		t.Errorf("expected balance 3022.5, got %s", sum.TotalBalance)
	}
	if sum.TotalIncome.String() != "3200" {
		t.Errorf("expected income 3200, got %s", sum.TotalIncome)
	}
	if sum.TotalExpense.String() != "177.5" {
		t.Errorf("expected expense 177.5, got %s", sum.TotalExpense)
	}
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var cats []core.CategoryTotal
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("expected 3 expense categories, got %d", len(cats))
	}
	if cats[0].Category != "Utilities" {
		t.Errorf("expected Utilities first, got %s", cats[0].Category)
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1].Total.Cents < cats[i].Total.Cents {
			t.Errorf("breakdown not sorted descending at index %d", i)
		}
	}
}

func TestTrend(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/trend?window=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var points []core.TrendPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 trend points, got %d", len(points))
	}
	if points[0].Date.After(points[1].Date.Time) {
		t.Error("trend not sorted oldest first")
	}

	// Bad window falls back to the configured default.
	rec = doRequest(srv, http.MethodGet, "/api/trend?window=zero", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 4 {
		t.Errorf("expected all 4 seed points within default window, got %d", len(points))
	}
}

func TestInsightCached(t *testing.T) {
	advisor := &fakeAdvisor{advice: "Pack your lunch twice a week."}
	srv := newTestServer(t, Options{Advisor: advisor, InsightCacheTTL: time.Hour})

	for i := 0; i < 3; i++ {
		rec := doRequest(srv, http.MethodGet, "/api/insight", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Advice string `json:"advice"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Advice != advisor.advice {
			t.Errorf("expected advice %q, got %q", advisor.advice, resp.Advice)
		}
	}
	if advisor.calls != 1 {
		t.Errorf("expected advisor called once, got %d", advisor.calls)
	}
}

func TestInsightFallbackWithoutAdvisor(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/insight", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Advice string `json:"advice"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Advice != gemini.FallbackAdvice {
		t.Errorf("expected fallback advice, got %q", resp.Advice)
	}
}

func TestInsightInvalidatedByMutation(t *testing.T) {
	advisor := &fakeAdvisor{advice: "tip"}
	srv := newTestServer(t, Options{Advisor: advisor, InsightCacheTTL: time.Hour})

	doRequest(srv, http.MethodGet, "/api/insight", nil)
	doRequest(srv, http.MethodDelete, "/api/transactions/1", nil)
	doRequest(srv, http.MethodGet, "/api/insight", nil)

	if advisor.calls != 2 {
		t.Errorf("expected advisor re-called after mutation, got %d calls", advisor.calls)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := doRequest(srv, http.MethodGet, "/api/summary", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY header, got %q", got)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv := newTestServer(t, Options{})

	var last int
	for i := 0; i < 70; i++ {
		body := []byte(fmt.Sprintf(`{"amount": 1, "category": "Food", "date": "2023-11-01", "type": "EXPENSE", "id": "rl-%d"}`, i))
		rec := doRequest(srv, http.MethodPost, "/api/transactions", body)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", last)
	}
}
