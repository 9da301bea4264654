package credits

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"cvadapt-backend/internal/shared/telemetry"
)

// HTTPLedger talks to the external credit ledger service.
type HTTPLedger struct {
	client *resty.Client
}

// NewHTTPLedger constructs an HTTPLedger against the given base URL.
func NewHTTPLedger(baseURL, apiKey string) (*HTTPLedger, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("CREDIT_LEDGER_URL is required")
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("X-API-Key", apiKey)
	}
	return &HTTPLedger{client: client}, nil
}

type movementRequest struct {
	UserID     string         `json:"userId"`
	Amount     int            `json:"amount"`
	ReasonCode string         `json:"reasonCode"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type movementResponse struct {
	Balance int    `json:"balance"`
	Error   string `json:"error,omitempty"`
}

// Consume charges the user. A 402 maps to ErrInsufficientCredits.
func (l *HTTPLedger) Consume(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error {
	return l.post(ctx, "/v1/credits/consume", userID, amount, reasonCode, metadata)
}

// Grant credits the user.
func (l *HTTPLedger) Grant(ctx context.Context, userID string, amount int, reasonCode string, metadata map[string]any) error {
	return l.post(ctx, "/v1/credits/grant", userID, amount, reasonCode, metadata)
}

func (l *HTTPLedger) post(ctx context.Context, path, userID string, amount int, reasonCode string, metadata map[string]any) error {
	var out movementResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(movementRequest{
			UserID:     userID,
			Amount:     amount,
			ReasonCode: reasonCode,
			Metadata:   metadata,
		}).
		SetResult(&out).
		SetError(&out).
		Post(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	switch {
	case resp.IsSuccess():
		telemetry.Info("credits.movement", map[string]any{
			"user_id":     userID,
			"amount":      amount,
			"reason_code": reasonCode,
			"path":        path,
			"balance":     out.Balance,
		})
		return nil
	case resp.StatusCode() == http.StatusPaymentRequired:
		return ErrInsufficientCredits
	default:
		return fmt.Errorf("%w: status %d: %s", ErrLedgerUnavailable, resp.StatusCode(), out.Error)
	}
}

var _ Ledger = (*HTTPLedger)(nil)
