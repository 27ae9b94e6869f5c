package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Benrishty/finsync/internal/core/domain"
	"github.com/Benrishty/finsync/internal/core/ports/driven"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		ClientID: "client-id",
		Secret:   "secret",
		BaseURL:  srv.URL,
	})
	return client, srv
}

func TestClient_SyncTransactions(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/sync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("PLAID-CLIENT-ID") != "client-id" {
			t.Error("missing client ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"added": []map[string]any{
				{
					"transaction_id":  "txn-1",
					"account_id":      "acc-1",
					"amount":          12.5,
					"date":            "2026-08-25",
					"name":            "Coffee Shop",
					"payment_channel": "in store",
					"pending":         false,
					"category":        []string{"Food and Drink"},
				},
			},
			"modified": []map[string]any{},
			"removed": []map[string]any{
				{"transaction_id": "txn-old", "account_id": "acc-1"},
			},
			"next_cursor": "cursor-2",
			"has_more":    true,
		})
	}))

	cs, err := client.SyncTransactions(context.Background(), "access-token", "cursor-1", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody["cursor"] != "cursor-1" {
		t.Errorf("expected cursor-1 in request, got %v", gotBody["cursor"])
	}
	if gotBody["count"] != float64(100) {
		t.Errorf("expected count 100, got %v", gotBody["count"])
	}

	if len(cs.Added) != 1 {
		t.Fatalf("expected 1 added, got %d", len(cs.Added))
	}
	txn := cs.Added[0]
	if txn.TransactionID != "txn-1" || txn.AccountID != "acc-1" {
		t.Errorf("unexpected transaction identity: %+v", txn)
	}
	if txn.Date.Format("2006-01-02") != "2026-08-25" {
		t.Errorf("unexpected date: %v", txn.Date)
	}
	if len(txn.Raw) == 0 {
		t.Error("expected raw payload to be retained")
	}
	if len(cs.Removed) != 1 || cs.Removed[0].TransactionID != "txn-old" {
		t.Errorf("unexpected removed: %+v", cs.Removed)
	}
	if cs.NextCursor != "cursor-2" || !cs.HasMore {
		t.Errorf("unexpected paging: cursor=%s has_more=%v", cs.NextCursor, cs.HasMore)
	}
}

func TestClient_SyncTransactions_FirstPageOmitsCursor(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["cursor"]; ok {
			t.Error("expected no cursor field on first sync")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"added": []any{}, "modified": []any{}, "removed": []any{},
			"next_cursor": "cursor-1", "has_more": false,
		})
	}))

	cs, err := client.SyncTransactions(context.Background(), "access-token", "", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.NextCursor != "cursor-1" {
		t.Errorf("unexpected cursor: %s", cs.NextCursor)
	}
}

func TestClient_SyncTransactions_DropsMalformedRecords(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"added": []map[string]any{
				{
					"transaction_id": "txn-good",
					"account_id":     "acc-1",
					"amount":         12.5,
					"date":           "2026-08-25",
					"name":           "Coffee Shop",
				},
				{
					"transaction_id": "txn-bad",
					"account_id":     "acc-1",
					"amount":         3.0,
					"date":           "not-a-date",
					"name":           "Garbled",
				},
			},
			"modified": []map[string]any{
				{
					"transaction_id": "txn-worse",
					"account_id":     "acc-1",
					"amount":         "not-a-number",
					"date":           "2026-08-26",
				},
			},
			"removed":     []any{},
			"next_cursor": "cursor-2",
			"has_more":    false,
		})
	}))

	cs, err := client.SyncTransactions(context.Background(), "access-token", "cursor-1", 100)
	if err != nil {
		t.Fatalf("one malformed record should not fail the page: %v", err)
	}

	if len(cs.Added) != 1 || cs.Added[0].TransactionID != "txn-good" {
		t.Fatalf("expected only txn-good to survive, got %+v", cs.Added)
	}
	if len(cs.Modified) != 0 {
		t.Errorf("expected undecodable modified record to be dropped, got %+v", cs.Modified)
	}
	if cs.Rejected != 2 {
		t.Errorf("expected 2 rejected records, got %d", cs.Rejected)
	}
	if cs.NextCursor != "cursor-2" {
		t.Errorf("unexpected cursor: %s", cs.NextCursor)
	}
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error_type":    "ITEM_ERROR",
			"error_code":    "ITEM_LOGIN_REQUIRED",
			"error_message": "the login details of this item have changed",
		})
	}))

	_, err := client.SyncTransactions(context.Background(), "access-token", "", 100)
	if err == nil {
		t.Fatal("expected error")
	}

	var itemErr *domain.ItemError
	if !errors.As(err, &itemErr) {
		t.Fatalf("expected ItemError, got %T: %v", err, err)
	}
	if itemErr.ErrorCode != domain.ErrorCodeItemLoginRequired {
		t.Errorf("unexpected code: %s", itemErr.ErrorCode)
	}
	if !itemErr.RequiresReauth() {
		t.Error("expected reauth-required error")
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "access-token",
			"item_id":      "item-1",
		})
	}))

	res, err := client.ExchangePublicToken(context.Background(), "public-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ItemID != "item-1" || res.AccessToken != "access-token" {
		t.Errorf("unexpected result: %+v", res)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClient_GetItem(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"item": map[string]any{
				"item_id":            "item-1",
				"institution_id":     "ins_1",
				"institution_name":   "First Platypus Bank",
				"available_products": []string{"balance"},
				"billed_products":    []string{"transactions"},
				"update_type":        "background",
				"error": map[string]string{
					"error_type": "ITEM_ERROR",
					"error_code": "ITEM_LOGIN_REQUIRED",
				},
			},
		})
	}))

	item, err := client.GetItem(context.Background(), "access-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ItemID != "item-1" || item.InstitutionID != "ins_1" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.Error == nil || item.Error.ErrorCode != domain.ErrorCodeItemLoginRequired {
		t.Errorf("unexpected error state: %+v", item.Error)
	}
	if item.Healthy() {
		t.Error("expected unhealthy item")
	}
	if len(item.Raw) == 0 {
		t.Error("expected raw payload to be retained")
	}
}

func TestClient_GetAccounts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/get" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accounts": []map[string]any{
				{
					"account_id": "acc-1",
					"name":       "Checking",
					"type":       "depository",
					"subtype":    "checking",
					"mask":       "0000",
					"balances": map[string]any{
						"available":         100.0,
						"current":           110.0,
						"iso_currency_code": "USD",
					},
				},
			},
			"item": map[string]string{"item_id": "item-1"},
		})
	}))

	accounts, err := client.GetAccounts(context.Background(), "access-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	acc := accounts[0]
	if acc.AccountID != "acc-1" || acc.ItemID != "item-1" {
		t.Errorf("unexpected account identity: %+v", acc)
	}
	if acc.Balances.Available == nil || *acc.Balances.Available != 100.0 {
		t.Errorf("unexpected balances: %+v", acc.Balances)
	}
}

func TestClient_GetTransactions(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]any{
				{
					"transaction_id": "txn-1",
					"account_id":     "acc-1",
					"amount":         5.0,
					"date":           "2024-08-29",
					"name":           "Grocery Store",
				},
			},
			"total_transactions": 731,
		})
	}))

	start := time.Date(2024, 8, 29, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	page, err := client.GetTransactions(context.Background(), "access-token", start, end, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody["start_date"] != "2024-08-29" || gotBody["end_date"] != "2026-08-29" {
		t.Errorf("unexpected date range: %v - %v", gotBody["start_date"], gotBody["end_date"])
	}
	if page.Total != 731 {
		t.Errorf("expected total 731, got %d", page.Total)
	}
	if len(page.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(page.Transactions))
	}
}

func TestClient_CreateLinkToken_UpdateMode(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"link_token": "link-token-1",
			"expiration": time.Now().Add(4 * time.Hour).Format(time.RFC3339),
			"request_id": "req-1",
		})
	}))

	token, err := client.CreateLinkToken(context.Background(), driven.LinkTokenRequest{
		ClientUserID: "user-1",
		AccessToken:  "access-token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token != "link-token-1" {
		t.Errorf("unexpected token: %s", token.Token)
	}
	if gotBody["access_token"] != "access-token" {
		t.Error("expected access_token for update mode")
	}
	if _, ok := gotBody["products"]; ok {
		t.Error("update mode must not request products")
	}
}

func TestClient_GetInstitution(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"institution": map[string]any{
				"institution_id": "ins_1",
				"name":           "First Platypus Bank",
				"products":       []string{"transactions"},
				"country_codes":  []string{"US"},
				"url":            "https://plat.bank",
			},
		})
	}))

	ins, err := client.GetInstitution(context.Background(), "ins_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ins.InstitutionID != "ins_1" || ins.Name != "First Platypus Bank" {
		t.Errorf("unexpected institution: %+v", ins)
	}
}
