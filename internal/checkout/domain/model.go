package domain

import (
	"context"
	"errors"

	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
)

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrProviderFailure = errors.New("provider_failure")
)

// CreateSessionRequest is the public checkout request for a ticket or
// donation against one event.
type CreateSessionRequest struct {
	Event     string                `json:"event"`
	EventName string                `json:"eventName"`
	Type      string                `json:"type"`
	Amount    int64                 `json:"amount"`
	Currency  string                `json:"currency"`
	Contact   customerdomain.Contact `json:"contact"`
	Metadata  map[string]string     `json:"metadata"`
}

type CreateSessionResponse struct {
	SessionID    string `json:"session_id"`
	ClientSecret string `json:"client_secret"`
}

// VerifySessionResponse reports the provider's view of a session together
// with the reconciled order status.
type VerifySessionResponse struct {
	SessionID     string             `json:"session_id"`
	PaymentStatus string             `json:"payment_status"`
	OrderStatus   orderdomain.Status `json:"order_status,omitempty"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
}

// SessionSpec is what the provider needs to open a hosted checkout session.
type SessionSpec struct {
	Amount         int64
	Currency       string
	ProductName    string
	Quantity       int64
	Email          string
	ReturnURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// ProviderSession mirrors the provider's checkout session object.
type ProviderSession struct {
	ID              string
	ClientSecret    string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	CustomerName    string
	Metadata        map[string]string
}

// ProviderClient talks to the payment provider's checkout API.
type ProviderClient interface {
	CreateSession(ctx context.Context, spec SessionSpec) (ProviderSession, error)
	GetSession(ctx context.Context, sessionID string) (ProviderSession, error)
}

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
	VerifySession(ctx context.Context, sessionID string) (*VerifySessionResponse, error)
}
