package customer

import (
	"github.com/f3impact/ignite/internal/customer/repository"
	"github.com/f3impact/ignite/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
