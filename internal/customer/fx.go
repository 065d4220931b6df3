package customer

import (
	"github.com/invobook/invobook/internal/customer/repository"
	"github.com/invobook/invobook/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
