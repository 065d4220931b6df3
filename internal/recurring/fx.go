package recurring

import (
	"go.uber.org/fx"

	"github.com/invobook/invobook/internal/recurring/service"
)

// Module wires the recurring invoicing feature.
var Module = fx.Module("recurring.service",
	fx.Provide(service.NewService),
)
