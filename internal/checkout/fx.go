package checkout

import (
	"github.com/f3impact/ignite/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(service.NewProviderClient),
	fx.Provide(service.New),
)
