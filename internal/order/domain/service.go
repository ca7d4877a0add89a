package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidAmount  = errors.New("invalid_amount")
	// ErrMissingCustomer means the order had to be created from the event
	// but the event carried no way to resolve a customer.
	ErrMissingCustomer = errors.New("missing_customer")
	ErrNotFound        = errors.New("not_found")
	// ErrConflict means a concurrent writer changed the order mid-flight.
	// The operation is safe to retry.
	ErrConflict = errors.New("order_conflict")
)

// Outcome classifies what a reconcile call actually did.
type Outcome string

const (
	// OutcomeApplied: the terminal transition (or terminal creation)
	// happened in this call. Downstream effects fire exactly on this.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop: the order was already in the target status.
	OutcomeNoop Outcome = "noop"
	// OutcomeAnomaly: the order sits in a different terminal status.
	// Terminal states are sticky; the status is left untouched.
	OutcomeAnomaly Outcome = "anomaly"
)

// Seed carries the event-derived fields used when the order has to be
// created lazily (the originating checkout request was lost or the webhook
// arrived first).
type Seed struct {
	CustomerID      snowflake.ID
	Amount          int64
	Currency        string
	Event           string
	EventName       string
	Type            string
	PaymentIntentID string
	Metadata        datatypes.JSONMap
}

type ReconcileResult struct {
	Order   *Order
	Outcome Outcome
}

// Applied reports whether this call performed the transition.
func (r ReconcileResult) Applied() bool { return r.Outcome == OutcomeApplied }

type Service interface {
	// CreatePending records a freshly initiated checkout session.
	CreatePending(ctx context.Context, sessionID string, seed Seed) (*Order, error)

	// Reconcile drives the order for sessionID into the target terminal
	// status. Redelivery of the same transition is a no-op; a conflicting
	// terminal status is reported as an anomaly and never overwritten.
	Reconcile(ctx context.Context, tx *gorm.DB, sessionID string, target Status, seed Seed) (ReconcileResult, error)

	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]Order, error)
	GetEventStats(ctx context.Context, event string) (EventStats, error)
}
