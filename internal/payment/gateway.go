// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package payment talks to the external checkout provider. The provider is
// opaque: we create an order, send the buyer to its approval page and
// capture the order when the buyer comes back.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the capture status that grants access.
const StatusCompleted = "COMPLETED"

// ErrNoApprovalURL is returned when a created order has no approve link.
var ErrNoApprovalURL = errors.New("order has no approval link")

// Gateway is a remote checkout provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*Capture, error)
}

// OrderRequest describes a single-item order.
type OrderRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// Order is a created, not yet approved, order.
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

// Capture is the outcome of capturing an approved order.
type Capture struct {
	OrderID string
	Status  string
}

// Completed reports whether the payment went through.
func (c *Capture) Completed() bool {
	return c != nil && c.Status == StatusCompleted
}

// WebhookEvent is the part of a provider notification we read.
type WebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"resource"`
}

// Webhook event types the service recognises.
const (
	EventOrderCompleted   = "CHECKOUT.ORDER.COMPLETED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventOther            = "other"
)

// Kind maps the sender-controlled event type onto a closed set, so it can
// be used as a metric label.
func (e *WebhookEvent) Kind() string {
	switch e.EventType {
	case EventOrderCompleted, EventCaptureCompleted:
		return e.EventType
	default:
		return EventOther
	}
}

// ParseWebhook decodes a notification body. It does not verify the
// sender; events are only logged.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse webhook: %w", err)
	}
	if ev.EventType == "" {
		return nil, errors.New("parse webhook: missing event_type")
	}
	return &ev, nil
}
