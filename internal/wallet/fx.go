package wallet

import (
	"github.com/skystack/fleetbill/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(
		service.NewService,
		NewHandler,
	),
)
