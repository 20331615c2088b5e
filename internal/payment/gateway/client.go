// Package gateway is a client for a Stripe-compatible checkout API.
package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"etatcivil/internal/payment/models"
)

var tracer = otel.Tracer("etatcivil/payment-gateway")

const paidStatus = "paid"

type sessionResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type Config struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type Client struct {
	http       *resty.Client
	successURL string
	cancelURL  string
}

func New(cfg Config) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.SecretKey).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{
		http:       rc,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// CreateCheckout opens a one-line-item checkout session for the payment.
func (c *Client) CreateCheckout(ctx context.Context, in models.CheckoutInput) (*models.GatewaySession, error) {
	ctx, span := tracer.Start(ctx, "gateway.create_checkout")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", in.PaymentID.String()),
		attribute.Int64("payment.amount", in.Amount),
	)

	method := in.PaymentMethod
	if method == "" {
		method = "card"
	}
	form := map[string]string{
		"mode":                                          "payment",
		"success_url":                                   c.successURL + "?session_id={CHECKOUT_SESSION_ID}",
		"cancel_url":                                    c.cancelURL,
		"client_reference_id":                           in.PaymentID.String(),
		"metadata[request_id]":                          in.RequestID.String(),
		"metadata[payment_id]":                          in.PaymentID.String(),
		"payment_method_types[0]":                       method,
		"line_items[0][quantity]":                       "1",
		"line_items[0][price_data][currency]":           in.Currency,
		"line_items[0][price_data][unit_amount]":        strconv.FormatInt(in.Amount, 10),
		"line_items[0][price_data][product_data][name]": in.Description,
	}

	var out sessionResponse
	var failure errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&failure).
		Post("/v1/checkout/sessions")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway answered %d: %s", resp.StatusCode(), failure.Error.Message)
	}
	return &models.GatewaySession{ID: out.ID, URL: out.URL, Paid: out.PaymentStatus == paidStatus}, nil
}

// GetSession fetches the current state of a checkout session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.GatewaySession, error) {
	ctx, span := tracer.Start(ctx, "gateway.get_session")
	defer span.End()

	var out sessionResponse
	var failure errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", sessionID).
		SetResult(&out).
		SetError(&failure).
		Get("/v1/checkout/sessions/{id}")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway answered %d: %s", resp.StatusCode(), failure.Error.Message)
	}
	return &models.GatewaySession{ID: out.ID, URL: out.URL, Paid: out.PaymentStatus == paidStatus}, nil
}
