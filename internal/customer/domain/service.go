package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
	// ErrConflict means a concurrent writer won the race for this email.
	// The operation is safe to retry.
	ErrConflict = errors.New("customer_conflict")
)

type Service interface {
	// Reconcile finds or creates the customer for the contact's email and
	// fills in any profile fields that are still empty. It never overwrites
	// a populated field and never touches the statistics counters.
	Reconcile(ctx context.Context, tx *gorm.DB, contact Contact) (*Customer, error)

	// IncrementStats atomically adds the event's contribution to the
	// cumulative counters.
	IncrementStats(ctx context.Context, tx *gorm.DB, id snowflake.ID, stats Stats) error

	GetByEmail(ctx context.Context, email string) (*Customer, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Customer, error)
}

// NormalizeEmail lowercases and trims the natural key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
