package main

import (
	"log"
	"time"

	_ "boostify-backend/migrations"

	"boostify-backend/payments"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/models"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, err := newLogger(appEnv())
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	chat, err := newStreamChat(cfg.Stream)
	if err != nil {
		logger.Fatal("stream client", zap.Error(err))
	}

	app := pocketbase.New()
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{})

	srv := newServer(
		cfg,
		logger,
		payments.NewStripeProcessor(cfg.Stripe.SecretKey),
		newDaoLedgerStore(app),
		newDaoOrderStore(app),
		newDaoProfileStore(app),
		chat,
	)

	registerOrderHooks(app)

	app.OnBeforeServe().Add(func(e *core.ServeEvent) error {
		limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      50,
			Burst:     50,
			ExpiresIn: 1 * time.Minute,
		})
		e.Router.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: limiterStore,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/stripe/webhook"
			},
			IdentifierExtractor: func(c echo.Context) (string, error) {
				record, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
				if ok && record != nil {
					return record.Id, nil
				}
				return c.RealIP(), nil
			},
		}))

		srv.registerRoutes(e.Router)
		logger.Info("routes registered", zap.Float64("platform_fee_percent", cfg.Stripe.PlatformFeePercent))

		return nil
	})

	if err := app.Start(); err != nil {
		logger.Fatal("pocketbase", zap.Error(err))
	}
}
