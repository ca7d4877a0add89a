package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/f3impact/ignite/internal/checkout/domain"
	"github.com/f3impact/ignite/internal/config"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	obsmetrics "github.com/f3impact/ignite/internal/observability/metrics"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	paymentservice "github.com/f3impact/ignite/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	GenID       *snowflake.Node
	Client      checkoutdomain.ProviderClient
	CustomerSvc customerdomain.Service
	OrderSvc    orderdomain.Service
	PaymentSvc  *paymentservice.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg         config.Config
	log         *zap.Logger
	genID       *snowflake.Node
	client      checkoutdomain.ProviderClient
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
	paymentSvc  *paymentservice.Service
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		cfg:         p.Cfg,
		log:         p.Log.Named("checkout.service"),
		genID:       p.GenID,
		client:      p.Client,
		customerSvc: p.CustomerSvc,
		orderSvc:    p.OrderSvc,
		paymentSvc:  p.PaymentSvc,
		obsMetrics:  p.ObsMetrics,
	}
}

// CreateSession opens a hosted checkout session with the provider, upserts
// the customer, and records the pending order the webhook will later settle.
func (s *Service) CreateSession(ctx context.Context, req checkoutdomain.CreateSessionRequest) (*checkoutdomain.CreateSessionResponse, error) {
	req.Event = strings.TrimSpace(req.Event)
	if req.Event == "" {
		return nil, checkoutdomain.ErrInvalidRequest
	}
	if req.Amount <= 0 {
		return nil, checkoutdomain.ErrInvalidAmount
	}
	email := customerdomain.NormalizeEmail(req.Contact.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, checkoutdomain.ErrInvalidRequest
	}
	req.Contact.Email = email

	orderType := normalizeType(req.Type)
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = strings.ToLower(s.cfg.DefaultCurrency)
	}
	productName := strings.TrimSpace(req.EventName)
	if productName == "" {
		productName = req.Event
	}

	spec := checkoutdomain.SessionSpec{
		Amount:         req.Amount,
		Currency:       currency,
		ProductName:    productName,
		Quantity:       1,
		Email:          email,
		ReturnURL:      s.cfg.FrontendURL + "/checkout/return?session_id={CHECKOUT_SESSION_ID}",
		Metadata:       sessionMetadata(req, orderType),
		IdempotencyKey: "checkout:" + s.genID.Generate().String(),
	}

	session, err := s.client.CreateSession(ctx, spec)
	if err != nil {
		s.recordSession(ctx, req.Event, "failed")
		return nil, err
	}

	customer, err := s.customerSvc.Reconcile(ctx, nil, req.Contact)
	if err != nil {
		return nil, err
	}

	seed := orderdomain.Seed{
		CustomerID:      customer.ID,
		Amount:          req.Amount,
		Currency:        currency,
		Event:           req.Event,
		EventName:       req.EventName,
		Type:            orderType,
		PaymentIntentID: session.PaymentIntentID,
		Metadata:        extraMetadata(req.Metadata),
	}
	if _, err := s.orderSvc.CreatePending(ctx, session.ID, seed); err != nil {
		// The provider session exists either way; losing the pending row is
		// recoverable because reconciliation creates orders lazily.
		if !errors.Is(err, orderdomain.ErrConflict) {
			s.log.Error("pending order creation failed",
				zap.String("session_id", session.ID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	s.recordSession(ctx, req.Event, "created")
	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("event", req.Event),
		zap.String("type", orderType),
		zap.Int64("amount", req.Amount),
	)

	return &checkoutdomain.CreateSessionResponse{
		SessionID:    session.ID,
		ClientSecret: session.ClientSecret,
	}, nil
}

// VerifySession fetches the provider's view of a session and, when the
// provider reports it paid, reconciles the order through the same gated path
// the webhook uses. A session verified after a webhook redelivery is a no-op.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*checkoutdomain.VerifySessionResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, checkoutdomain.ErrInvalidRequest
	}

	session, err := s.client.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus == "paid" {
		event := eventFromSession(session)
		if _, err := s.paymentSvc.Reconcile(ctx, event); err != nil {
			return nil, err
		}
	}

	resp := &checkoutdomain.VerifySessionResponse{
		SessionID:     session.ID,
		PaymentStatus: session.PaymentStatus,
		Amount:        session.AmountTotal,
		Currency:      session.Currency,
	}
	order, err := s.orderSvc.GetBySessionID(ctx, session.ID)
	if err != nil && !errors.Is(err, orderdomain.ErrNotFound) {
		return nil, err
	}
	if order != nil {
		resp.OrderStatus = order.Status
	}
	return resp, nil
}

func (s *Service) recordSession(ctx context.Context, event, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, event, outcome)
	}
}

// eventFromSession shapes a provider session into the same normalized event
// a checkout.session.completed webhook would produce.
func eventFromSession(session checkoutdomain.ProviderSession) *paymentdomain.PaymentEvent {
	meta := session.Metadata
	email := session.CustomerEmail
	if email == "" {
		email = meta["email"]
	}
	name := session.CustomerName
	if name == "" {
		name = meta["name"]
	}
	return &paymentdomain.PaymentEvent{
		Provider:        "stripe",
		Type:            paymentdomain.EventTypeCheckoutCompleted,
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
		Amount:          session.AmountTotal,
		Currency:        session.Currency,
		Contact: customerdomain.Contact{
			Email:   email,
			Name:    name,
			PaxName: meta["paxName"],
			AO:      meta["ao"],
			Region:  meta["region"],
		},
		Event:     meta["event"],
		EventName: meta["eventName"],
		OrderType: meta["type"],
	}
}

func sessionMetadata(req checkoutdomain.CreateSessionRequest, orderType string) map[string]string {
	meta := map[string]string{
		"event": req.Event,
		"type":  orderType,
		"email": req.Contact.Email,
	}
	setIfPresent(meta, "eventName", req.EventName)
	setIfPresent(meta, "name", req.Contact.Name)
	setIfPresent(meta, "paxName", req.Contact.PaxName)
	setIfPresent(meta, "ao", req.Contact.AO)
	setIfPresent(meta, "region", req.Contact.Region)
	for key, value := range req.Metadata {
		if _, reserved := meta[key]; !reserved {
			meta[key] = value
		}
	}
	return meta
}

func setIfPresent(meta map[string]string, key, value string) {
	if strings.TrimSpace(value) != "" {
		meta[key] = value
	}
}

func extraMetadata(metadata map[string]string) datatypes.JSONMap {
	bag := datatypes.JSONMap{}
	for key, value := range metadata {
		bag[key] = value
	}
	return bag
}

func normalizeType(orderType string) string {
	switch strings.ToLower(strings.TrimSpace(orderType)) {
	case orderdomain.TypeDonation:
		return orderdomain.TypeDonation
	default:
		return orderdomain.TypeTicket
	}
}
