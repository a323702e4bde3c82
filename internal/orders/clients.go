package orders

import (
	"context"
	"net/http"

	"orderflow/internal/downstream"
)

// Downstream service names, used in faults and gateway error messages.
const (
	ServiceInventory = "inventory"
	ServicePayment   = "payment"
	ServiceShipping  = "shipping"
	ServiceOrders    = "order-store"
)

// PaymentStatusCompleted is the business status a transport-successful
// authorize call must report for the payment step to count as succeeded.
const PaymentStatusCompleted = "completed"

// InventoryClient reserves, releases, and commits stock for an order.
// Release and Commit are expected to be idempotent downstream.
type InventoryClient interface {
	Reserve(ctx context.Context, orderID string, items []Item) (string, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error
}

// PaymentResult is the authorize response: a payment id plus the business
// status, which must be inspected separately from transport success.
type PaymentResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PaymentClient authorizes charges and refunds them during compensation.
type PaymentClient interface {
	Authorize(ctx context.Context, orderID string, amount float64, currency string) (PaymentResult, error)
	Refund(ctx context.Context, paymentID string) error
}

// ShippingClient creates shipments.
type ShippingClient interface {
	CreateShipment(ctx context.Context, orderID string, address Address, items []Item) (string, error)
}

type idResponse struct {
	ID string `json:"id"`
}

// HTTPInventoryClient talks to the inventory service over HTTP.
type HTTPInventoryClient struct {
	caller  downstream.Caller
	baseURL string
}

// NewHTTPInventoryClient constructs an inventory client rooted at baseURL.
func NewHTTPInventoryClient(caller downstream.Caller, baseURL string) *HTTPInventoryClient {
	return &HTTPInventoryClient{caller: caller, baseURL: baseURL}
}

func (c *HTTPInventoryClient) Reserve(ctx context.Context, orderID string, items []Item) (string, error) {
	body := struct {
		OrderID string `json:"orderId"`
		Items   []Item `json:"items"`
	}{OrderID: orderID, Items: items}

	data, err := c.caller.Call(ctx, ServiceInventory, http.MethodPost, c.baseURL+"/reserve", body)
	if err != nil {
		return "", err
	}
	var resp idResponse
	if err := downstream.DecodeJSON(ServiceInventory, data, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *HTTPInventoryClient) Release(ctx context.Context, reservationID string) error {
	_, err := c.caller.Call(ctx, ServiceInventory, http.MethodPost, c.baseURL+"/reservations/"+reservationID+"/release", nil)
	return err
}

func (c *HTTPInventoryClient) Commit(ctx context.Context, reservationID string) error {
	_, err := c.caller.Call(ctx, ServiceInventory, http.MethodPost, c.baseURL+"/reservations/"+reservationID+"/commit", nil)
	return err
}

// HTTPPaymentClient talks to the payment service over HTTP.
type HTTPPaymentClient struct {
	caller  downstream.Caller
	baseURL string
}

// NewHTTPPaymentClient constructs a payment client rooted at baseURL.
func NewHTTPPaymentClient(caller downstream.Caller, baseURL string) *HTTPPaymentClient {
	return &HTTPPaymentClient{caller: caller, baseURL: baseURL}
}

func (c *HTTPPaymentClient) Authorize(ctx context.Context, orderID string, amount float64, currency string) (PaymentResult, error) {
	body := struct {
		OrderID  string  `json:"orderId"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}{OrderID: orderID, Amount: amount, Currency: currency}

	data, err := c.caller.Call(ctx, ServicePayment, http.MethodPost, c.baseURL+"/charges", body)
	if err != nil {
		return PaymentResult{}, err
	}
	var resp PaymentResult
	if err := downstream.DecodeJSON(ServicePayment, data, &resp); err != nil {
		return PaymentResult{}, err
	}
	return resp, nil
}

func (c *HTTPPaymentClient) Refund(ctx context.Context, paymentID string) error {
	_, err := c.caller.Call(ctx, ServicePayment, http.MethodPost, c.baseURL+"/charges/"+paymentID+"/refund", nil)
	return err
}

// HTTPShippingClient talks to the shipping service over HTTP.
type HTTPShippingClient struct {
	caller  downstream.Caller
	baseURL string
}

// NewHTTPShippingClient constructs a shipping client rooted at baseURL.
func NewHTTPShippingClient(caller downstream.Caller, baseURL string) *HTTPShippingClient {
	return &HTTPShippingClient{caller: caller, baseURL: baseURL}
}

func (c *HTTPShippingClient) CreateShipment(ctx context.Context, orderID string, address Address, items []Item) (string, error) {
	body := struct {
		OrderID string  `json:"orderId"`
		Address Address `json:"address"`
		Items   []Item  `json:"items"`
	}{OrderID: orderID, Address: address, Items: items}

	data, err := c.caller.Call(ctx, ServiceShipping, http.MethodPost, c.baseURL+"/shipments", body)
	if err != nil {
		return "", err
	}
	var resp idResponse
	if err := downstream.DecodeJSON(ServiceShipping, data, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
