// Package payments creates provider charges for service requests.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
)

var (
	ErrMissingAccessToken = errors.New("missing mercado pago access token")
	ErrNotConfigured      = errors.New("mercado pago gateway not configured")
)

// Charge is one payment to create with the provider.
type Charge struct {
	// Reference ties the charge to a service request id.
	Reference   string
	Description string
	AmountCents int64
	// MethodID is the provider payment method, "pix" or "bolbradesco".
	MethodID   string
	PayerEmail string
	PayerName  string
}

// Result is the provider's answer.
type Result struct {
	ID     string
	Status string
}

// MercadoPagoGateway charges through the Mercado Pago payments API. In mock
// mode it approves every charge locally.
type MercadoPagoGateway struct {
	client   payment.Client
	mockMode bool
	mockSeq  atomic.Int64
}

// NewMercadoPagoGateway builds a live gateway, or a mock one when mock is set.
func NewMercadoPagoGateway(accessToken string, mock bool) (*MercadoPagoGateway, error) {
	if mock {
		slog.Info("payment gateway mock mode enabled")
		return &MercadoPagoGateway{mockMode: true}, nil
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}
	return &MercadoPagoGateway{client: payment.NewClient(cfg)}, nil
}

// Create registers the charge and returns the provider id and status.
func (g *MercadoPagoGateway) Create(ctx context.Context, c Charge) (Result, error) {
	if c.AmountCents <= 0 {
		return Result{}, errors.New("charge amount must be positive")
	}
	if g != nil && g.mockMode {
		id := strconv.FormatInt(time.Now().UTC().UnixNano()+g.mockSeq.Add(1), 10)
		slog.InfoContext(ctx, "payment mock charge", "reference", c.Reference, "provider_payment_id", id)
		return Result{ID: id, Status: "approved"}, nil
	}
	if g == nil || g.client == nil {
		return Result{}, ErrNotConfigured
	}

	payload, err := requestPayload(c)
	if err != nil {
		return Result{}, err
	}
	var req payment.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Result{}, fmt.Errorf("build payment request: %w", err)
	}
	resp, err := g.client.Create(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("create payment: %w", err)
	}
	slog.InfoContext(ctx, "payment created",
		"reference", c.Reference,
		"provider_payment_id", resp.ID,
		"provider_status", resp.Status,
	)
	return Result{ID: fmt.Sprintf("%d", resp.ID), Status: resp.Status}, nil
}

func requestPayload(c Charge) ([]byte, error) {
	first, last := splitName(c.PayerName)
	body := map[string]any{
		"transaction_amount": float64(c.AmountCents) / 100,
		"description":        c.Description,
		"payment_method_id":  c.MethodID,
		"external_reference": c.Reference,
		"payer": map[string]any{
			"email":      c.PayerEmail,
			"first_name": first,
			"last_name":  last,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal payment payload: %w", err)
	}
	return b, nil
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
