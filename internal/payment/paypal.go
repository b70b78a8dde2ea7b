// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edustream/internal/metrics"
)

// DefaultPayPalBaseURL is the sandbox REST endpoint.
const DefaultPayPalBaseURL = "https://api-m.sandbox.paypal.com"

// PayPalConfig holds REST API credentials.
type PayPalConfig struct {
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  time.Duration
}

// PayPal implements Gateway using the PayPal REST API (OAuth2 client
// credentials plus Orders v2). A fresh access token is fetched for every
// operation.
type PayPal struct {
	config PayPalConfig
	client *http.Client
}

// NewPayPal creates a PayPal gateway client.
func NewPayPal(cfg PayPalConfig) *PayPal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPayPalBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &PayPal{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateOrder requests a CAPTURE-intent order and returns its approval link.
func (p *PayPal) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	order, err := p.createOrder(ctx, req)
	observe("create_order", err)
	return order, err
}

func (p *PayPal) createOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount: paypalAmount{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
			Description: req.Description,
		}},
		ApplicationContext: paypalAppContext{
			ReturnURL: req.ReturnURL,
			CancelURL: req.CancelURL,
		},
	}

	var resp paypalOrderResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", token, body, &resp); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	order := &Order{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApprovalURL = link.Href
			break
		}
	}
	if order.ID == "" || order.ApprovalURL == "" {
		return nil, fmt.Errorf("paypal create order %q: %w", order.ID, ErrNoApprovalURL)
	}
	return order, nil
}

// CaptureOrder captures an approved order.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	capture, err := p.captureOrder(ctx, orderID)
	observe("capture_order", err)
	return capture, err
}

func (p *PayPal) captureOrder(ctx context.Context, orderID string) (*Capture, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp paypalOrderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := p.doJSON(ctx, http.MethodPost, path, token, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}
	return &Capture{OrderID: resp.ID, Status: resp.Status}, nil
}

// accessToken exchanges client credentials for a bearer token.
func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	req.SetBasicAuth(p.config.ClientID, p.config.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok paypalTokenResponse
	if err := p.do(req, &tok); err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("paypal token: empty access token")
	}
	return tok.AccessToken, nil
}

func (p *PayPal) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return p.do(req, out)
}

func (p *PayPal) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayRequestsTotal.WithLabelValues(op, result).Inc()
}

// --- PayPal request/response types ---

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext paypalAppContext     `json:"application_context"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}
