package payment

import (
	"github.com/f3impact/ignite/internal/config"
	paymentdomain "github.com/f3impact/ignite/internal/payment/domain"
	"github.com/f3impact/ignite/internal/payment/repository"
	paymentservice "github.com/f3impact/ignite/internal/payment/service"
	"github.com/f3impact/ignite/internal/payment/stripe"
	"github.com/f3impact/ignite/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) (paymentdomain.Adapter, error) {
		return stripe.NewAdapter(cfg.StripeWebhookSecret, cfg.StripeTolerance)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
