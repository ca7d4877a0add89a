package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Customer, error) {
	var item domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, pax_name, phone,
			address_line1, address_city, address_state, address_postal_code,
			ao, region, stripe_customer_id,
			total_paid, tickets_purchased, event_count,
			created_at, updated_at
		 FROM customers
		 WHERE email = ?
		 LIMIT 1`,
		email,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var item domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, pax_name, phone,
			address_line1, address_city, address_state, address_postal_code,
			ao, region, stripe_customer_id,
			total_paid, tickets_purchased, event_count,
			created_at, updated_at
		 FROM customers
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO customers (
			id, email, name, pax_name, phone,
			address_line1, address_city, address_state, address_postal_code,
			ao, region, stripe_customer_id,
			total_paid, tickets_purchased, event_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`,
		customer.ID,
		customer.Email,
		customer.Name,
		customer.PaxName,
		customer.Phone,
		customer.AddressLine1,
		customer.AddressCity,
		customer.AddressState,
		customer.AddressPostalCode,
		customer.AO,
		customer.Region,
		customer.StripeCustomerID,
		customer.TotalPaid,
		customer.TicketsPurchased,
		customer.EventCount,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FillProfile(ctx context.Context, db *gorm.DB, id snowflake.ID, contact domain.Contact) error {
	// COALESCE(NULLIF(col, ''), ?) keeps the stored value unless it is empty,
	// so redelivered or late events never overwrite earlier profile data.
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET
			name = COALESCE(NULLIF(name, ''), ?),
			pax_name = COALESCE(NULLIF(pax_name, ''), ?),
			phone = COALESCE(NULLIF(phone, ''), ?),
			address_line1 = COALESCE(NULLIF(address_line1, ''), ?),
			address_city = COALESCE(NULLIF(address_city, ''), ?),
			address_state = COALESCE(NULLIF(address_state, ''), ?),
			address_postal_code = COALESCE(NULLIF(address_postal_code, ''), ?),
			ao = COALESCE(NULLIF(ao, ''), ?),
			region = COALESCE(NULLIF(region, ''), ?),
			stripe_customer_id = COALESCE(NULLIF(stripe_customer_id, ''), ?),
			updated_at = ?
		 WHERE id = ?`,
		contact.Name,
		contact.PaxName,
		contact.Phone,
		contact.AddressLine1,
		contact.AddressCity,
		contact.AddressState,
		contact.AddressPostalCode,
		contact.AO,
		contact.Region,
		contact.StripeCustomerID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) IncrementStats(ctx context.Context, db *gorm.DB, id snowflake.ID, stats domain.Stats) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET
			total_paid = total_paid + ?,
			tickets_purchased = tickets_purchased + ?,
			event_count = event_count + ?,
			updated_at = ?
		 WHERE id = ?`,
		stats.Amount,
		stats.Tickets,
		stats.Events,
		time.Now().UTC(),
		id,
	).Error
}
