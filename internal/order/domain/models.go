package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

const (
	TypeTicket   = "ticket"
	TypeDonation = "donation"
	TypeOther    = "other"
)

// Order is keyed by the provider's checkout session identifier. Amount and
// currency are immutable once set; status only moves forward.
type Order struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	CustomerID            snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	StripeSessionID       string            `gorm:"column:stripe_session_id;uniqueIndex;not null" json:"stripe_session_id"`
	StripePaymentIntentID string            `gorm:"column:stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	Amount                int64             `gorm:"not null" json:"amount"`
	Currency              string            `gorm:"not null" json:"currency"`
	Event                 string            `gorm:"not null;index" json:"event"`
	EventName             string            `json:"event_name,omitempty"`
	Type                  string            `gorm:"not null" json:"type"`
	Status                Status            `gorm:"not null" json:"status"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt             time.Time         `gorm:"not null" json:"created_at"`
	PaidAt                *time.Time        `json:"paid_at,omitempty"`
	UpdatedAt             time.Time         `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// EventStats aggregates paid orders for one event.
type EventStats struct {
	TotalRaised int64 `json:"total_raised"`
	TicketsSold int64 `json:"tickets_sold"`
}
