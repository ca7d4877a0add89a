package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/f3impact/ignite/internal/customer/domain"
	obsmetrics "github.com/f3impact/ignite/internal/observability/metrics"
	orderdomain "github.com/f3impact/ignite/internal/order/domain"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxConflictRetries bounds how often a lost storage race is retried before
// the failure is surfaced for provider redelivery.
const maxConflictRetries = 3

const (
	outcomeApplied = "applied"
	outcomeNoop    = "noop"
	outcomeAnomaly = "anomaly"
	outcomeLogged  = "logged"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	CustomerSvc customerdomain.Service
	OrderSvc    orderdomain.Service
	Repo        paymentdomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

// Service sequences the customer and order reconcilers per event kind and
// owns the at-most-once-effect contract under at-least-once delivery.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	customerSvc customerdomain.Service
	orderSvc    orderdomain.Service
	repo        paymentdomain.Repository
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		customerSvc: p.CustomerSvc,
		orderSvc:    p.OrderSvc,
		repo:        p.Repo,
		obsMetrics:  p.ObsMetrics,
	}
}

// ProcessEvent records the delivery, reconciles it, and marks it processed.
// Redelivery of an already-processed event is reported as
// ErrEventAlreadyProcessed without touching any aggregate.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	start := time.Now()

	if err := validateEvent(event); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	now := time.Now().UTC()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		SessionID:       event.SessionID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	outcome, err := s.Reconcile(ctx, event)
	if err != nil {
		s.log.Error("payment event reconciliation failed",
			zap.String("event_type", event.Type),
			zap.String("session_id", event.SessionID),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, time.Now().UTC()); err != nil {
		return err
	}

	s.log.Info("payment event reconciled",
		zap.String("event_type", event.Type),
		zap.String("session_id", event.SessionID),
		zap.String("outcome", outcome),
		zap.Duration("latency", time.Since(start)),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, outcome, time.Since(start))
	}

	return nil
}

// Reconcile applies one normalized event to the aggregates. It is also the
// entry point for session verification, which bypasses the delivery ledger.
func (s *Service) Reconcile(ctx context.Context, event *paymentdomain.PaymentEvent) (string, error) {
	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted, paymentdomain.EventTypeAsyncPaymentSucceeded:
		return s.settleWithRetry(ctx, event, orderdomain.StatusPaid)
	case paymentdomain.EventTypeAsyncPaymentFailed:
		return s.settleWithRetry(ctx, event, orderdomain.StatusFailed)
	case paymentdomain.EventTypeIntentSucceeded, paymentdomain.EventTypeIntentFailed:
		// Intent-level events are a coarser signal already covered by the
		// session-level events; observe, do not mutate.
		s.log.Info("payment intent event observed",
			zap.String("event_type", event.Type),
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.Int64("amount", event.Amount),
		)
		return outcomeLogged, nil
	default:
		return "", paymentdomain.ErrInvalidEvent
	}
}

func (s *Service) settleWithRetry(ctx context.Context, event *paymentdomain.PaymentEvent, target orderdomain.Status) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		outcome, err := s.settle(ctx, event, target)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, orderdomain.ErrConflict) && !errors.Is(err, customerdomain.ErrConflict) {
			return "", err
		}
		lastErr = err
		s.log.Warn("reconciliation conflict, retrying",
			zap.String("session_id", event.SessionID),
			zap.Int("attempt", attempt+1),
		)
	}
	return "", lastErr
}

// settle runs the order transition and the dependent customer statistics
// update inside one transaction, so a failure can never leave a
// half-applied pair observable as success.
func (s *Service) settle(ctx context.Context, event *paymentdomain.PaymentEvent, target orderdomain.Status) (string, error) {
	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return "", paymentdomain.ErrMalformedEvent
	}

	var result orderdomain.ReconcileResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customerID snowflake.ID
		customer, err := s.customerSvc.Reconcile(ctx, tx, event.Contact)
		switch {
		case err == nil:
			customerID = customer.ID
		case errors.Is(err, customerdomain.ErrInvalidEmail):
			// No usable contact on the event; an existing order still
			// carries its own customer reference.
		default:
			return err
		}

		seed := orderdomain.Seed{
			CustomerID:      customerID,
			Amount:          event.Amount,
			Currency:        event.Currency,
			Event:           event.Event,
			EventName:       event.EventName,
			Type:            event.OrderType,
			PaymentIntentID: event.PaymentIntentID,
			Metadata:        metadataBag(event.Metadata),
		}

		result, err = s.orderSvc.Reconcile(ctx, tx, sessionID, target, seed)
		if err != nil {
			if errors.Is(err, orderdomain.ErrMissingCustomer) {
				return paymentdomain.ErrMalformedEvent
			}
			return err
		}

		if result.Applied() && target == orderdomain.StatusPaid {
			stats := customerdomain.Stats{
				Amount:  result.Order.Amount,
				Tickets: ticketContribution(result.Order.Type),
				Events:  1,
			}
			if err := s.customerSvc.IncrementStats(ctx, tx, result.Order.CustomerID, stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if result.Outcome == orderdomain.OutcomeAnomaly {
		s.log.Warn("sticky terminal status rejected transition",
			zap.String("session_id", sessionID),
			zap.String("current_status", string(result.Order.Status)),
			zap.String("target_status", string(target)),
		)
	}
	return string(result.Outcome), nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if paymentdomain.SessionScoped(event.Type) && strings.TrimSpace(event.SessionID) == "" {
		return paymentdomain.ErrMalformedEvent
	}
	return nil
}

func ticketContribution(orderType string) int64 {
	if orderType == orderdomain.TypeTicket {
		return 1
	}
	return 0
}

func metadataBag(metadata map[string]string) datatypes.JSONMap {
	bag := datatypes.JSONMap{}
	for key, value := range metadata {
		bag[key] = value
	}
	return bag
}
