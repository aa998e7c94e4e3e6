package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.LedgerStore) {
	t.Helper()
	store, err := storage.NewLedgerStore(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("open ledger store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	domain := order.Domain{
		Name:              "Clearport Protocol",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000ff"),
	}
	return NewServer(zap.NewNop(), store, domain), store
}

func TestHandleFilledAmounts(t *testing.T) {
	server, store := newTestServer(t)
	filled := order.PackUID(common.Hash{1}, common.Address{1}, 1)
	empty := order.PackUID(common.Hash{2}, common.Address{2}, 2)
	if err := store.SetFilledAmount(filled, big.NewInt(42)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	body, _ := json.Marshal(FilledAmountsRequest{UIDs: []string{filled.String(), empty.String()}})
	req := httptest.NewRequest("POST", "/api/v1/orders/filled", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	var resp FilledAmountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Amounts) != 2 || resp.Amounts[0] != "42" || resp.Amounts[1] != "0" {
		t.Errorf("amounts = %v, want [42 0]", resp.Amounts)
	}
}

func TestHandleFilledAmountsRejectsBadUID(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(FilledAmountsRequest{UIDs: []string{"0xdeadbeef"}})
	req := httptest.NewRequest("POST", "/api/v1/orders/filled", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleFilledAmount(t *testing.T) {
	server, store := newTestServer(t)
	uid := order.PackUID(common.Hash{3}, common.Address{3}, 3)
	if err := store.SetFilledAmount(uid, big.NewInt(7)); err != nil {
		t.Fatalf("seed fill: %v", err)
	}
	if err := store.SetPreSignature(uid, true); err != nil {
		t.Fatalf("seed presig: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/orders/"+uid.String()+"/filled", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	var resp FilledAmountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UID != uid.String() {
		t.Errorf("uid = %s, want %s", resp.UID, uid.String())
	}
	if resp.Amount != "7" {
		t.Errorf("amount = %s, want 7", resp.Amount)
	}
	if !resp.PreSigned {
		t.Error("preSigned = false, want true")
	}
}

func TestHandleFilledAmountRejectsBadUID(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/orders/nonsense/filled", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Error("error response carries no message")
	}
}

func TestHandleDomain(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/domain", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp DomainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "Clearport Protocol" || resp.ChainID != "1337" {
		t.Errorf("domain = %+v", resp)
	}
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
