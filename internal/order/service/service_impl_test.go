package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/f3impact/ignite/internal/order/domain"
	"github.com/f3impact/ignite/internal/order/repository"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) (*Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc.(*Service), node
}

func TestCreatePending(t *testing.T) {
	svc, node := setupTestService(t)
	ctx := context.Background()
	customerID := node.Generate()

	order, err := svc.CreatePending(ctx, "cs_1", domain.Seed{
		CustomerID: customerID,
		Amount:     2500,
		Currency:   "usd",
		Event:      "winter-convergence-2026",
	})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.Type != domain.TypeTicket {
		t.Fatalf("expected type defaulted to ticket, got %s", order.Type)
	}
	if order.PaidAt != nil {
		t.Fatalf("expected nil paid_at on pending order")
	}

	// Same session again loses the uniqueness race.
	if _, err := svc.CreatePending(ctx, "cs_1", domain.Seed{CustomerID: customerID, Amount: 2500}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate session, got %v", err)
	}

	if _, err := svc.CreatePending(ctx, "cs_2", domain.Seed{CustomerID: customerID, Amount: 0}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.CreatePending(ctx, "cs_3", domain.Seed{Amount: 100}); !errors.Is(err, domain.ErrMissingCustomer) {
		t.Fatalf("expected ErrMissingCustomer, got %v", err)
	}
}

func TestReconcileTransition(t *testing.T) {
	svc, node := setupTestService(t)
	ctx := context.Background()
	customerID := node.Generate()

	if _, err := svc.CreatePending(ctx, "cs_1", domain.Seed{CustomerID: customerID, Amount: 2500}); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	res, err := svc.Reconcile(ctx, nil, "cs_1", domain.StatusPaid, domain.Seed{PaymentIntentID: "pi_1"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Applied() {
		t.Fatalf("expected first transition applied, got %s", res.Outcome)
	}
	if res.Order.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", res.Order.Status)
	}
	if res.Order.PaidAt == nil {
		t.Fatalf("expected paid_at set")
	}
	if res.Order.StripePaymentIntentID != "pi_1" {
		t.Fatalf("expected intent id filled, got %s", res.Order.StripePaymentIntentID)
	}

	// Redelivery of the same transition.
	res, err = svc.Reconcile(ctx, nil, "cs_1", domain.StatusPaid, domain.Seed{})
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if res.Outcome != domain.OutcomeNoop {
		t.Fatalf("expected noop on redelivery, got %s", res.Outcome)
	}

	// Conflicting terminal status is sticky.
	res, err = svc.Reconcile(ctx, nil, "cs_1", domain.StatusFailed, domain.Seed{})
	if err != nil {
		t.Fatalf("conflicting transition: %v", err)
	}
	if res.Outcome != domain.OutcomeAnomaly {
		t.Fatalf("expected anomaly, got %s", res.Outcome)
	}
	if res.Order.Status != domain.StatusPaid {
		t.Fatalf("expected status untouched, got %s", res.Order.Status)
	}
}

func TestReconcileLazyCreation(t *testing.T) {
	svc, node := setupTestService(t)
	ctx := context.Background()
	customerID := node.Generate()

	res, err := svc.Reconcile(ctx, nil, "cs_lost", domain.StatusPaid, domain.Seed{
		CustomerID: customerID,
		Amount:     1500,
		Currency:   "usd",
		Event:      "winter-convergence-2026",
		Type:       domain.TypeDonation,
	})
	if err != nil {
		t.Fatalf("lazy reconcile: %v", err)
	}
	if !res.Applied() {
		t.Fatalf("expected lazy creation to count as applied, got %s", res.Outcome)
	}
	if res.Order.Status != domain.StatusPaid || res.Order.Type != domain.TypeDonation {
		t.Fatalf("expected paid donation order, got %+v", res.Order)
	}

	// No customer to attach the lazily created order to.
	if _, err := svc.Reconcile(ctx, nil, "cs_orphan", domain.StatusPaid, domain.Seed{Amount: 100}); !errors.Is(err, domain.ErrMissingCustomer) {
		t.Fatalf("expected ErrMissingCustomer, got %v", err)
	}

	if _, err := svc.Reconcile(ctx, nil, "cs_x", domain.StatusPending, domain.Seed{}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for non-terminal target, got %v", err)
	}
}

func TestEventStats(t *testing.T) {
	svc, node := setupTestService(t)
	ctx := context.Background()
	customerID := node.Generate()

	seed := domain.Seed{CustomerID: customerID, Amount: 2500, Event: "winter-convergence-2026"}
	if _, err := svc.Reconcile(ctx, nil, "cs_a", domain.StatusPaid, seed); err != nil {
		t.Fatalf("reconcile a: %v", err)
	}
	seed.Amount = 1000
	if _, err := svc.Reconcile(ctx, nil, "cs_b", domain.StatusPaid, seed); err != nil {
		t.Fatalf("reconcile b: %v", err)
	}
	// Failed orders never count.
	seed.Amount = 9000
	if _, err := svc.Reconcile(ctx, nil, "cs_c", domain.StatusFailed, seed); err != nil {
		t.Fatalf("reconcile c: %v", err)
	}

	stats, err := svc.GetEventStats(ctx, "winter-convergence-2026")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRaised != 3500 || stats.TicketsSold != 2 {
		t.Fatalf("expected 3500/2, got %d/%d", stats.TotalRaised, stats.TicketsSold)
	}
}
