package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Customer, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)

	// Insert creates the customer row, returning false when the email
	// already exists.
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)

	// FillProfile fills empty profile fields from the contact in a single
	// statement. Populated fields are left untouched.
	FillProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, contact Contact) error

	IncrementStats(ctx context.Context, db *gorm.DB, id snowflake.ID, stats Stats) error
}
