package daemonstatus

import (
	"github.com/skystack/fleetbill/internal/daemonstatus/service"
	"go.uber.org/fx"
)

var Module = fx.Module("daemonstatus.service",
	fx.Provide(
		service.NewService,
		NewHandler,
	),
)
