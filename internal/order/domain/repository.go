package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)

	// Insert creates the order row, returning false when the session
	// identifier already exists.
	Insert(ctx context.Context, db *gorm.DB, order *Order) (bool, error)

	// TransitionFromPending conditionally moves the order into a terminal
	// status, applying only while the current status is pending. Returns
	// whether a row was updated.
	TransitionFromPending(ctx context.Context, db *gorm.DB, sessionID string, target Status, paidAt *time.Time, paymentIntentID string) (bool, error)

	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Order, error)
	EventStats(ctx context.Context, db *gorm.DB, event string) (EventStats, error)
}
