package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	"gorm.io/datatypes"
)

const (
	EventTypeCheckoutCompleted     = "checkout_completed"
	EventTypeAsyncPaymentSucceeded = "async_payment_succeeded"
	EventTypeAsyncPaymentFailed    = "async_payment_failed"
	EventTypeIntentSucceeded       = "payment_intent_succeeded"
	EventTypeIntentFailed          = "payment_intent_failed"
)

// SessionScoped reports whether the event type refers to a checkout session
// and therefore requires a session identifier.
func SessionScoped(eventType string) bool {
	switch eventType {
	case EventTypeCheckoutCompleted, EventTypeAsyncPaymentSucceeded, EventTypeAsyncPaymentFailed:
		return true
	default:
		return false
	}
}

// PaymentEvent is the canonical payment event parsed by adapters.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	SessionID       string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Contact         customerdomain.Contact
	Event           string
	EventName       string
	OrderType       string
	Metadata        map[string]string
	OccurredAt      time.Time
	RawPayload      []byte
}

// EventRecord is the durable dedup ledger for delivered webhooks, keyed by
// (provider, provider_event_id).
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	SessionID       string         `json:"session_id" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Adapter verifies and normalizes one provider's webhook payloads.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// WebhookService ingests raw webhook deliveries.
type WebhookService interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}
