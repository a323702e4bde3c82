package orders

import (
	"context"
	"testing"
)

func TestBuildOrderService_InMemoryFallbacks(t *testing.T) {
	service, cleanup := BuildOrderService(context.Background(), BuildConfig{}, nil)
	defer cleanup()

	if service == nil {
		t.Fatalf("expected a service")
	}
	if _, ok := service.store.(*InMemoryOrderStore); !ok {
		t.Fatalf("expected in-memory order store, got %T", service.store)
	}
	if _, ok := service.inventory.(*InMemoryInventoryClient); !ok {
		t.Fatalf("expected in-memory inventory, got %T", service.inventory)
	}
	if _, ok := service.payments.(*InMemoryPaymentClient); !ok {
		t.Fatalf("expected in-memory payments, got %T", service.payments)
	}
	if _, ok := service.shipping.(*InMemoryShippingClient); !ok {
		t.Fatalf("expected in-memory shipping, got %T", service.shipping)
	}

	// The fully in-memory wiring must run a saga end to end.
	order, err := service.CreateOrder(context.Background(), CreateOrderRequest{
		Currency: "INR",
		Address:  Address{Line1: "1 MG Road", City: "Bengaluru", Country: "IN"},
		Items:    []Item{{SKU: "ABC", Qty: 1, Price: 5}},
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", order.Status)
	}
}

func TestBuildOrderService_HTTPClientsWhenConfigured(t *testing.T) {
	service, cleanup := BuildOrderService(context.Background(), BuildConfig{
		OrderStoreURL: "http://orders:8000",
		InventoryURL:  "http://inventory:8000",
		PaymentURL:    "http://payment:8000",
		ShippingURL:   "http://shipping:8000",
	}, nil)
	defer cleanup()

	if _, ok := service.store.(*HTTPOrderStore); !ok {
		t.Fatalf("expected HTTP order store, got %T", service.store)
	}
	if _, ok := service.inventory.(*HTTPInventoryClient); !ok {
		t.Fatalf("expected HTTP inventory, got %T", service.inventory)
	}
	if _, ok := service.payments.(*HTTPPaymentClient); !ok {
		t.Fatalf("expected HTTP payments, got %T", service.payments)
	}
	if _, ok := service.shipping.(*HTTPShippingClient); !ok {
		t.Fatalf("expected HTTP shipping, got %T", service.shipping)
	}
}
