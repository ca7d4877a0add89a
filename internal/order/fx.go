package order

import (
	"github.com/f3impact/ignite/internal/order/repository"
	"github.com/f3impact/ignite/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
