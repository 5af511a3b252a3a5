package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skystack/fleetbill/internal/config"
	"github.com/skystack/fleetbill/internal/daemonstatus"
	"github.com/skystack/fleetbill/internal/wallet"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server is the main-process HTTP surface: health, metrics, and the
// read-only daemon status projection. The tenant-facing API lives in a
// separate system and is not our concern.
type Server struct {
	engine *gin.Engine
	log    *zap.Logger
	addr   string
}

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	StatusHandler *daemonstatus.Handler
	WalletHandler *wallet.Handler
}

func New(p Params) *Server {
	if p.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	p.StatusHandler.RegisterRoutes(engine)
	p.WalletHandler.RegisterRoutes(engine)

	return &Server{
		engine: engine,
		log:    p.Log.Named("server"),
		addr:   p.Cfg.HTTPAddr,
	}
}

func registerHooks(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			s.log.Info("http server listening", zap.String("addr", s.addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
