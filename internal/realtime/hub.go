package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"orderflow/internal/orders"
)

// Hub manages WebSocket subscribers and broadcasts order status events to
// them.
type Hub struct {
	connections map[*websocket.Conn]struct{}
	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Broadcast   chan []byte
	mu          sync.Mutex
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		Register:    make(chan *websocket.Conn),
		Unregister:  make(chan *websocket.Conn),
		Broadcast:   make(chan []byte, 64),
	}
}

// Run processes register/unregister/broadcast events.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.Unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// OrderEvent is the wire shape broadcast on every persisted order
// transition.
type OrderEvent struct {
	OrderID         string `json:"orderId"`
	Status          string `json:"status"`
	RefundSucceeded *bool  `json:"refundSucceeded,omitempty"`
}

// StatusNotifier adapts the hub to the coordinator's event sink: it turns
// order snapshots into broadcast frames. Publishing never blocks the saga:
// when the broadcast buffer is full the event is dropped.
type StatusNotifier struct {
	hub    *Hub
	logger *slog.Logger
}

// NewStatusNotifier constructs a notifier feeding hub.
func NewStatusNotifier(hub *Hub, logger *slog.Logger) *StatusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusNotifier{hub: hub, logger: logger}
}

// OrderUpdated implements orders.EventSink.
func (n *StatusNotifier) OrderUpdated(order orders.Order) {
	event := OrderEvent{
		OrderID: order.ID,
		Status:  string(order.Status),
	}
	if order.RefundAttempt != nil {
		success := order.RefundAttempt.Success
		event.RefundSucceeded = &success
	}

	msg, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("marshal order event", "order_id", order.ID, "error", err)
		return
	}

	select {
	case n.hub.Broadcast <- msg:
	default:
		n.logger.Warn("order event dropped, broadcast buffer full", "order_id", order.ID)
	}
}
