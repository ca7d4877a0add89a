package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	paymentservice "github.com/f3impact/ignite/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc *paymentservice.Service
	Adapter    paymentdomain.Adapter
}

// Service is the webhook entry point: it verifies the delivery with the
// provider adapter, normalizes it, and hands it to the reconciliation
// service. Events outside the handled set are acknowledged without effect.
type Service struct {
	log        *zap.Logger
	paymentSvc *paymentservice.Service
	adapter    paymentdomain.Adapter
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		paymentSvc: p.PaymentSvc,
		adapter:    p.Adapter,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			// Unhandled event types must still be acknowledged, or the
			// provider keeps redelivering them.
			s.log.Debug("webhook event ignored", zap.String("provider", s.adapter.Provider()))
			return nil
		}
		return err
	}

	event.Provider = s.adapter.Provider()
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	if err := s.paymentSvc.ProcessEvent(ctx, event, payload); err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			s.log.Info("webhook event already processed",
				zap.String("provider", event.Provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
		return err
	}
	return nil
}
