package invoice

import (
	"go.uber.org/fx"

	"github.com/invobook/invobook/internal/invoice/service"
)

// Module wires the payment reconciliation feature.
var Module = fx.Module("invoice.service",
	fx.Provide(service.NewService),
	fx.Provide(service.NewNumberAllocator),
)
