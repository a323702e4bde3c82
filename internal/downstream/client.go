package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FaultClass partitions downstream failures by how they should be handled.
type FaultClass string

const (
	// ClientFault is a well-formed business rejection (4xx).
	ClientFault FaultClass = "client"
	// ServerFault is an upstream 5xx or a malformed response.
	ServerFault FaultClass = "server"
	// TransportFault means no response was received at all.
	TransportFault FaultClass = "transport"
)

// Fault describes a failed downstream call.
type Fault struct {
	Service string
	Class   FaultClass
	Status  int // HTTP status when a response was received, 0 otherwise
	Detail  string
}

func (f *Fault) Error() string {
	if f.Status > 0 {
		return fmt.Sprintf("%s: %s fault (status %d): %s", f.Service, f.Class, f.Status, f.Detail)
	}
	return fmt.Sprintf("%s: %s fault: %s", f.Service, f.Class, f.Detail)
}

// AsFault unwraps err into a *Fault, if it is one.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsTransport reports whether err is a transport-class fault.
func IsTransport(err error) bool {
	f, ok := AsFault(err)
	return ok && f.Class == TransportFault
}

// Caller issues a request to a downstream service and returns the raw
// response body on success or a *Fault on failure.
type Caller interface {
	Call(ctx context.Context, service, method, url string, body any) ([]byte, error)
}

const maxErrorBody = 64 << 10

// Client is a stateless HTTP caller shared by all downstream service
// clients. Every call gets the same fixed timeout.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient constructs a Client with the given per-call timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Call performs an HTTP request with a JSON body (nil for none) and returns
// the raw response body. Non-2xx responses and transport errors come back as
// a *Fault; malformed error bodies never fail detail extraction.
func (c *Client) Call(ctx context.Context, service, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("downstream transport failure", "service", service, "url", url, "error", err)
		return nil, &Fault{Service: service, Class: TransportFault, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, &Fault{Service: service, Class: ServerFault, Status: resp.StatusCode, Detail: "unreadable response body: " + err.Error()}
	}

	if resp.StatusCode >= 400 {
		fault := &Fault{
			Service: service,
			Status:  resp.StatusCode,
			Detail:  extractDetail(data, resp.StatusCode),
		}
		if resp.StatusCode < 500 {
			fault.Class = ClientFault
		} else {
			fault.Class = ServerFault
		}
		return nil, fault
	}

	return data, nil
}

// DecodeJSON decodes a successful response body. A body that cannot be
// decoded counts as a server fault: the upstream answered, but not with the
// contract we expect.
func DecodeJSON(service string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &Fault{Service: service, Class: ServerFault, Detail: "malformed response: " + err.Error()}
	}
	return nil
}

// extractDetail pulls a human-readable message out of an error body:
// the JSON "detail" field if present, else the raw body text, else a
// generic message.
func extractDetail(body []byte, status int) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if raw, err := json.Marshal(payload.Detail); err == nil {
			return string(raw)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("status %d with empty body", status)
}
