package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orderflow/internal/downstream"
)

func newRecordingServer(t *testing.T, status int, respond string) (*httptest.Server, *struct {
	method string
	path   string
	body   map[string]any
}) {
	t.Helper()
	got := &struct {
		method string
		path   string
		body   map[string]any
	}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&got.body)
		}
		w.WriteHeader(status)
		w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func testCaller(t *testing.T) downstream.Caller {
	t.Helper()
	return downstream.NewClient(time.Second, nil)
}

func TestHTTPInventoryClient_Reserve(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"id":"resv-9"}`)
	client := NewHTTPInventoryClient(testCaller(t), srv.URL)

	id, err := client.Reserve(context.Background(), "order-1", []Item{{SKU: "ABC", Qty: 2, Price: 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "resv-9" {
		t.Fatalf("unexpected reservation id: %s", id)
	}
	if got.method != http.MethodPost || got.path != "/reserve" {
		t.Fatalf("unexpected request: %s %s", got.method, got.path)
	}
	if got.body["orderId"] != "order-1" {
		t.Fatalf("unexpected body: %v", got.body)
	}
}

func TestHTTPInventoryClient_ReleaseAndCommit(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{}`)
	client := NewHTTPInventoryClient(testCaller(t), srv.URL)

	if err := client.Release(context.Background(), "resv-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/reservations/resv-9/release" {
		t.Fatalf("unexpected release path: %s", got.path)
	}

	if err := client.Commit(context.Background(), "resv-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/reservations/resv-9/commit" {
		t.Fatalf("unexpected commit path: %s", got.path)
	}
}

func TestHTTPPaymentClient_Authorize(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"id":"pay-7","status":"completed"}`)
	client := NewHTTPPaymentClient(testCaller(t), srv.URL)

	result, err := client.Authorize(context.Background(), "order-1", 20.0, "INR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID != "pay-7" || result.Status != "completed" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got.path != "/charges" {
		t.Fatalf("unexpected path: %s", got.path)
	}
	if got.body["amount"] != 20.0 || got.body["currency"] != "INR" {
		t.Fatalf("unexpected body: %v", got.body)
	}
}

func TestHTTPPaymentClient_AuthorizeMalformedResponse(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `not json`)
	client := NewHTTPPaymentClient(testCaller(t), srv.URL)

	_, err := client.Authorize(context.Background(), "order-1", 20.0, "INR")
	fault, ok := downstream.AsFault(err)
	if !ok || fault.Class != downstream.ServerFault {
		t.Fatalf("malformed body must be a server fault, got %v", err)
	}
}

func TestHTTPPaymentClient_Refund(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{}`)
	client := NewHTTPPaymentClient(testCaller(t), srv.URL)

	if err := client.Refund(context.Background(), "pay-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.path != "/charges/pay-7/refund" {
		t.Fatalf("unexpected path: %s", got.path)
	}
}

func TestHTTPShippingClient_CreateShipment(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"id":"ship-3"}`)
	client := NewHTTPShippingClient(testCaller(t), srv.URL)

	id, err := client.CreateShipment(context.Background(), "order-1",
		Address{Line1: "1 MG Road", City: "Bengaluru", Country: "IN"},
		[]Item{{SKU: "ABC", Qty: 1, Price: 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ship-3" {
		t.Fatalf("unexpected shipment id: %s", id)
	}
	if got.path != "/shipments" {
		t.Fatalf("unexpected path: %s", got.path)
	}
}

func TestHTTPOrderStore_CreateUpdateGet(t *testing.T) {
	var stored Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&stored)
			w.Write([]byte(`{}`))
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(stored)
		}
	}))
	defer srv.Close()

	store := NewHTTPOrderStore(testCaller(t), srv.URL)
	ctx := context.Background()

	order := Order{ID: "order-1", UserID: "u1", Status: StatusCreated, Total: 20}
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	order.Status = StatusCompleted
	if err := store.Update(ctx, order); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "order-1" || got.Status != StatusCompleted || got.Total != 20 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestHTTPOrderStore_GetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Order not found"}`))
	}))
	defer srv.Close()

	store := NewHTTPOrderStore(testCaller(t), srv.URL)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestInMemoryOrderStore_UpdateMissing(t *testing.T) {
	store := NewInMemoryOrderStore()
	err := store.Update(context.Background(), Order{ID: "ghost"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestTotal(t *testing.T) {
	items := []Item{
		{SKU: "A", Qty: 2, Price: 5.0},
		{SKU: "B", Qty: 3, Price: 1.5},
	}
	if got := Total(items); got != 14.5 {
		t.Fatalf("expected 14.5, got %v", got)
	}
	if got := Total(nil); got != 0 {
		t.Fatalf("expected 0 for no items, got %v", got)
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusCreated.Terminal() {
		t.Fatalf("created is not terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusFailedShipping} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
