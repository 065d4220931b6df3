package audit

import (
	"go.uber.org/fx"

	"github.com/invobook/invobook/internal/audit/repository"
	"github.com/invobook/invobook/internal/audit/service"
)

// Module wires the audit trail feature.
var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
