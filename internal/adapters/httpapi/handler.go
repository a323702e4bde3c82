package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"orderflow/internal/orders"
	"orderflow/internal/realtime"
)

// OrderService is the coordinator surface the handler consumes.
type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest, idempotencyKey string) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
}

// Handler handles incoming HTTP requests for the order domain.
type Handler struct {
	service  OrderService
	hub      *realtime.Hub // nil disables the /ws feed
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. hub may be nil.
func NewHandler(service OrderService, hub *realtime.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// CreateOrder validates the request and runs the fulfillment saga. A
// repeated Idempotency-Key returns the original order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if msg, ok := validateCreateOrder(&req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	order, err := h.service.CreateOrder(r.Context(), req, idempotencyKey)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetOrder retrieves a single order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "order-service",
	})
}

// Watch upgrades the connection and subscribes it to order status events.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.hub.Register <- conn

	// Drain inbound frames so pings/closes are processed; the feed is
	// one-way.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.Unregister <- conn
				return
			}
		}
	}()
}

func validateCreateOrder(req *orders.CreateOrderRequest) (string, bool) {
	if len(req.Items) == 0 {
		return "items must not be empty", false
	}
	for _, item := range req.Items {
		if item.SKU == "" {
			return "items: sku is required", false
		}
		if item.Qty <= 0 {
			return "items: qty must be > 0", false
		}
		if item.Price < 0 {
			return "items: price must be >= 0", false
		}
	}
	if req.Address.Line1 == "" || req.Address.City == "" || req.Address.Country == "" {
		return "address line1, city, and country are required", false
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	return "", true
}

func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var classified *orders.Error
	if errors.As(err, &classified) {
		writeError(w, classified.Status, classified.Detail)
		return
	}
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	h.logger.Error("unclassified order error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// ErrorResponse mirrors the error body shape of the downstream services:
// a single detail field.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
