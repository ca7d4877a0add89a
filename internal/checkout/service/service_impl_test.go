package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	"github.com/f3impact/ignite/internal/config"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	customerrepo "github.com/f3impact/ignite/internal/customer/repository"
	customerservice "github.com/f3impact/ignite/internal/customer/service"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
	orderrepo "github.com/f3impact/ignite/internal/order/repository"
	orderservice "github.com/f3impact/ignite/internal/order/service"
	paymentrepo "github.com/f3impact/ignite/internal/payment/repository"
	paymentservice "github.com/f3impact/ignite/internal/payment/service"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeProviderClient struct {
	created  []checkoutdomain.SessionSpec
	sessions map[string]checkoutdomain.ProviderSession
}

func (f *fakeProviderClient) CreateSession(ctx context.Context, spec checkoutdomain.SessionSpec) (checkoutdomain.ProviderSession, error) {
	f.created = append(f.created, spec)
	session := checkoutdomain.ProviderSession{
		ID:            fmt.Sprintf("cs_fake_%d", len(f.created)),
		ClientSecret:  "secret_fake",
		Status:        "open",
		PaymentStatus: "unpaid",
		AmountTotal:   spec.Amount,
		Currency:      spec.Currency,
		CustomerEmail: spec.Email,
		Metadata:      spec.Metadata,
	}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeProviderClient) GetSession(ctx context.Context, sessionID string) (checkoutdomain.ProviderSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return checkoutdomain.ProviderSession{}, checkoutdomain.ErrSessionNotFound
	}
	return session, nil
}

type testEnv struct {
	svc         checkoutdomain.Service
	client      *fakeProviderClient
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:checkout_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&customerdomain.Customer{}, &orderdomain.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	log := zap.NewNop()
	cfg := config.Config{
		FrontendURL:     "http://localhost:3000",
		DefaultCurrency: "USD",
	}

	customerSvc := customerservice.New(customerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  customerrepo.Provide(),
	})
	orderSvc := orderservice.New(orderservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  orderrepo.Provide(),
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		CustomerSvc: customerSvc,
		OrderSvc:    orderSvc,
		Repo:        paymentrepo.Provide(),
	})
	client := &fakeProviderClient{sessions: map[string]checkoutdomain.ProviderSession{}}

	svc := New(Params{
		Cfg:         cfg,
		Log:         log,
		GenID:       node,
		Client:      client,
		CustomerSvc: customerSvc,
		OrderSvc:    orderSvc,
		PaymentSvc:  paymentSvc,
	})

	return &testEnv{svc: svc, client: client, customerSvc: customerSvc, orderSvc: orderSvc}
}

func TestCreateSession(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.CreateSession(ctx, checkoutdomain.CreateSessionRequest{
		Event:     "winter-convergence-2026",
		EventName: "Winter Convergence",
		Amount:    2500,
		Contact: customerdomain.Contact{
			Email:   "Pax@Example.com",
			Name:    "Sample Pax",
			PaxName: "Chopper",
		},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if resp.SessionID == "" || resp.ClientSecret == "" {
		t.Fatalf("expected session id and client secret, got %+v", resp)
	}

	spec := env.client.created[0]
	if spec.Currency != "usd" {
		t.Fatalf("expected default currency usd, got %s", spec.Currency)
	}
	if spec.Email != "pax@example.com" {
		t.Fatalf("expected normalized email, got %s", spec.Email)
	}
	if spec.Metadata["event"] != "winter-convergence-2026" || spec.Metadata["type"] != orderdomain.TypeTicket {
		t.Fatalf("expected event metadata on session, got %v", spec.Metadata)
	}
	if spec.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}

	// A pending order bound to the reconciled customer exists right away.
	order, err := env.orderSvc.GetBySessionID(ctx, resp.SessionID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != orderdomain.StatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	customer, err := env.customerSvc.GetByEmail(ctx, "pax@example.com")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if order.CustomerID != customer.ID {
		t.Fatalf("expected order bound to customer")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  checkoutdomain.CreateSessionRequest
		want error
	}{
		{"missing event", checkoutdomain.CreateSessionRequest{Amount: 100, Contact: customerdomain.Contact{Email: "a@b.c"}}, checkoutdomain.ErrInvalidRequest},
		{"zero amount", checkoutdomain.CreateSessionRequest{Event: "x", Contact: customerdomain.Contact{Email: "a@b.c"}}, checkoutdomain.ErrInvalidAmount},
		{"bad email", checkoutdomain.CreateSessionRequest{Event: "x", Amount: 100, Contact: customerdomain.Contact{Email: "nope"}}, checkoutdomain.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.CreateSession(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVerifySessionSettlesPaid(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.CreateSession(ctx, checkoutdomain.CreateSessionRequest{
		Event:  "winter-convergence-2026",
		Amount: 2500,
		Contact: customerdomain.Contact{
			Email: "pax@example.com",
		},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Provider reports the session paid before any webhook lands.
	session := env.client.sessions[resp.SessionID]
	session.PaymentStatus = "paid"
	session.Status = "complete"
	session.PaymentIntentID = "pi_1"
	env.client.sessions[resp.SessionID] = session

	verified, err := env.svc.VerifySession(ctx, resp.SessionID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.PaymentStatus != "paid" || verified.OrderStatus != orderdomain.StatusPaid {
		t.Fatalf("expected paid session and order, got %+v", verified)
	}

	customer, err := env.customerSvc.GetByEmail(ctx, "pax@example.com")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalPaid != 2500 || customer.TicketsPurchased != 1 {
		t.Fatalf("expected stats 2500/1, got %d/%d", customer.TotalPaid, customer.TicketsPurchased)
	}

	// Verifying again must not double-count.
	if _, err := env.svc.VerifySession(ctx, resp.SessionID); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	customer, _ = env.customerSvc.GetByEmail(ctx, "pax@example.com")
	if customer.TotalPaid != 2500 {
		t.Fatalf("expected stats unchanged on re-verify, got %d", customer.TotalPaid)
	}
}

func TestVerifySessionUnknown(t *testing.T) {
	env := setupTestEnv(t)

	if _, err := env.svc.VerifySession(context.Background(), "cs_missing"); !errors.Is(err, checkoutdomain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := env.svc.VerifySession(context.Background(), ""); !errors.Is(err, checkoutdomain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
