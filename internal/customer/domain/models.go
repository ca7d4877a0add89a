package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is the long-lived aggregate keyed by normalized email.
// Profile fields are first-write-wins; the counters are increment-only.
type Customer struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Email             string       `gorm:"uniqueIndex;not null" json:"email"`
	Name              string       `gorm:"not null" json:"name"`
	PaxName           string       `gorm:"column:pax_name" json:"pax_name,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	AddressLine1      string       `gorm:"column:address_line1" json:"address_line1,omitempty"`
	AddressCity       string       `gorm:"column:address_city" json:"address_city,omitempty"`
	AddressState      string       `gorm:"column:address_state" json:"address_state,omitempty"`
	AddressPostalCode string       `gorm:"column:address_postal_code" json:"address_postal_code,omitempty"`
	AO                string       `gorm:"column:ao" json:"ao,omitempty"`
	Region            string       `json:"region,omitempty"`
	StripeCustomerID  string       `gorm:"column:stripe_customer_id" json:"stripe_customer_id,omitempty"`
	TotalPaid         int64        `gorm:"column:total_paid;not null;default:0" json:"total_paid"`
	TicketsPurchased  int64        `gorm:"column:tickets_purchased;not null;default:0" json:"tickets_purchased"`
	EventCount        int64        `gorm:"column:event_count;not null;default:0" json:"event_count"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// Contact carries the profile fields a payment event may know about a customer.
type Contact struct {
	Email             string
	Name              string
	PaxName           string
	Phone             string
	AddressLine1      string
	AddressCity       string
	AddressState      string
	AddressPostalCode string
	AO                string
	Region            string
	StripeCustomerID  string
}

// Stats is a single event's contribution to the cumulative counters.
type Stats struct {
	Amount  int64
	Tickets int64
	Events  int64
}
