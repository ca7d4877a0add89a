package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, stripe_session_id, stripe_payment_intent_id,
			amount, currency, event, event_name, type, status, metadata,
			created_at, paid_at, updated_at
		 FROM orders
		 WHERE stripe_session_id = ?
		 LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, customer_id, stripe_session_id, stripe_payment_intent_id,
			amount, currency, event, event_name, type, status, metadata,
			created_at, paid_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_session_id) DO NOTHING`,
		order.ID,
		order.CustomerID,
		order.StripeSessionID,
		order.StripePaymentIntentID,
		order.Amount,
		order.Currency,
		order.Event,
		order.EventName,
		order.Type,
		order.Status,
		order.Metadata,
		order.CreatedAt,
		order.PaidAt,
		order.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) TransitionFromPending(ctx context.Context, db *gorm.DB, sessionID string, target domain.Status, paidAt *time.Time, paymentIntentID string) (bool, error) {
	// Compare-and-swap on status: the transition applies at most once even
	// under concurrent redeliveries of the same webhook.
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET
			status = ?,
			paid_at = COALESCE(paid_at, ?),
			stripe_payment_intent_id = COALESCE(NULLIF(stripe_payment_intent_id, ''), ?),
			updated_at = ?
		 WHERE stripe_session_id = ? AND status = ?`,
		target,
		paidAt,
		paymentIntentID,
		time.Now().UTC(),
		sessionID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, stripe_session_id, stripe_payment_intent_id,
			amount, currency, event, event_name, type, status, metadata,
			created_at, paid_at, updated_at
		 FROM orders
		 WHERE customer_id = ?
		 ORDER BY created_at DESC`,
		customerID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) EventStats(ctx context.Context, db *gorm.DB, event string) (domain.EventStats, error) {
	var stats domain.EventStats
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total_raised, COUNT(*) AS tickets_sold
		 FROM orders
		 WHERE event = ? AND status = ?`,
		event,
		domain.StatusPaid,
	).Scan(&stats).Error
	if err != nil {
		return domain.EventStats{}, err
	}
	return stats, nil
}
