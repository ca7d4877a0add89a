package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	"github.com/f3impact/ignite/internal/config"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	customerrepo "github.com/f3impact/ignite/internal/customer/repository"
	customerservice "github.com/f3impact/ignite/internal/customer/service"
	"github.com/f3impact/ignite/internal/observability"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
	orderrepo "github.com/f3impact/ignite/internal/order/repository"
	orderservice "github.com/f3impact/ignite/internal/order/service"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	paymentrepo "github.com/f3impact/ignite/internal/payment/repository"
	paymentservice "github.com/f3impact/ignite/internal/payment/service"
	"github.com/f3impact/ignite/internal/payment/stripe"
	"github.com/f3impact/ignite/internal/payment/webhook"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

type stubCheckoutService struct{}

func (stubCheckoutService) CreateSession(ctx context.Context, req checkoutdomain.CreateSessionRequest) (*checkoutdomain.CreateSessionResponse, error) {
	return &checkoutdomain.CreateSessionResponse{SessionID: "cs_stub", ClientSecret: "secret"}, nil
}

func (stubCheckoutService) VerifySession(ctx context.Context, sessionID string) (*checkoutdomain.VerifySessionResponse, error) {
	return &checkoutdomain.VerifySessionResponse{SessionID: sessionID}, nil
}

type serverHarness struct {
	server      *Server
	db          *gorm.DB
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
}

func setupTestServer(t *testing.T) *serverHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&customerdomain.Customer{}, &orderdomain.Order{}, &paymentdomain.EventRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_events_provider_event ON payment_events(provider, provider_event_id)")

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	log := zap.NewNop()

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
	adapter, err := stripe.NewAdapter(testWebhookSecret, stripe.DefaultTolerance)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	webhookSvc := webhook.NewService(webhook.Params{
		Log:        log,
		PaymentSvc: paymentSvc,
		Adapter:    adapter,
	})

	engine := NewEngine(observability.Config{})
	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{HTTPAddr: ":0"},
		DB:          db,
		GenID:       node,
		CustomerSvc: customerSvc,
		OrderSvc:    orderSvc,
		CheckoutSvc: stubCheckoutService{},
		WebhookSvc:  webhookSvc,
	})

	return &serverHarness{server: srv, db: db, customerSvc: customerSvc, orderSvc: orderSvc}
}

func (h *serverHarness) deliver(t *testing.T, payload []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if sign {
		req.Header.Set("Stripe-Signature", signPayload(testWebhookSecret, payload, time.Now().Unix()))
	}
	rec := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	return rec
}

func checkoutCompletedPayload(t *testing.T, eventID, sessionID string, amount int64) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"amount_total":   amount,
				"currency":       "usd",
				"payment_intent": "pi_1",
				"customer_details": map[string]any{
					"email": "pax@example.com",
					"name":  "Sample Pax",
				},
				"metadata": map[string]any{
					"event": "winter-convergence-2026",
					"type":  "ticket",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func TestWebhookEndToEnd(t *testing.T) {
	h := setupTestServer(t)
	payload := checkoutCompletedPayload(t, "evt_1", "sess_1", 2500)

	rec := h.deliver(t, payload, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same delivery twice; the provider must still see success.
	rec = h.deliver(t, payload, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d: %s", rec.Code, rec.Body.String())
	}

	customer, err := h.customerSvc.GetByEmail(context.Background(), "pax@example.com")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.TotalPaid != 2500 || customer.TicketsPurchased != 1 || customer.EventCount != 1 {
		t.Fatalf("expected stats 2500/1/1, got %d/%d/%d", customer.TotalPaid, customer.TicketsPurchased, customer.EventCount)
	}

	order, err := h.orderSvc.GetBySessionID(context.Background(), "sess_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != orderdomain.StatusPaid {
		t.Fatalf("expected paid order, got %s", order.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := setupTestServer(t)
	payload := checkoutCompletedPayload(t, "evt_1", "sess_1", 2500)

	rec := h.deliver(t, payload, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload("whsec_wrong", payload, time.Now().Unix()))
	rec = httptest.NewRecorder()
	h.server.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Type != "invalid_signature" {
		t.Fatalf("expected invalid_signature, got %s", resp.Error.Type)
	}

	// Nothing may have been written.
	var customers int64
	h.db.Model(&customerdomain.Customer{}).Count(&customers)
	if customers != 0 {
		t.Fatalf("expected no customers, got %d", customers)
	}
}

func TestWebhookAcksUnhandledEvents(t *testing.T) {
	h := setupTestServer(t)
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)

	rec := h.deliver(t, payload, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rec.Code)
	}
}

func TestEventStatsEndpoint(t *testing.T) {
	h := setupTestServer(t)

	rec := h.deliver(t, checkoutCompletedPayload(t, "evt_1", "sess_1", 2500), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events/winter-convergence-2026/stats", nil)
	res := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp struct {
		Data orderdomain.EventStats `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if resp.Data.TotalRaised != 2500 || resp.Data.TicketsSold != 1 {
		t.Fatalf("expected 2500/1, got %+v", resp.Data)
	}
}

func TestCustomerOrdersEndpoint(t *testing.T) {
	h := setupTestServer(t)

	rec := h.deliver(t, checkoutCompletedPayload(t, "evt_1", "sess_1", 2500), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	customer, err := h.customerSvc.GetByEmail(context.Background(), "pax@example.com")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/customers/"+customer.ID.String()+"/orders", nil)
	res := httptest.NewRecorder()
	h.server.Engine().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Data struct {
			Orders []orderdomain.Order `json:"orders"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode orders: %v", err)
	}
	if len(resp.Data.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(resp.Data.Orders))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/customers/not-a-number/orders", nil)
	res = httptest.NewRecorder()
	h.server.Engine().ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", res.Code)
	}
}

func signPayload(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
