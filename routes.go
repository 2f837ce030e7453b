package main

import (
	"boostify-backend/payments"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type server struct {
	cfg        Config
	log        *zap.Logger
	classifier *payments.Classifier
	intents    *payments.Intents
	ledger     LedgerStore
	orders     OrderStore
	profiles   ProfileStore
	chat       ChatService
}

func newServer(cfg Config, log *zap.Logger, processor payments.Processor, ledger LedgerStore, orders OrderStore, profiles ProfileStore, chat ChatService) *server {
	return &server{
		cfg:        cfg,
		log:        log,
		classifier: payments.NewClassifier(processor, log),
		intents:    payments.NewIntents(processor, log),
		ledger:     ledger,
		orders:     orders,
		profiles:   profiles,
		chat:       chat,
	}
}

func (s *server) registerRoutes(router *echo.Echo) {
	webhook := newStripeWebhook(s.cfg.Stripe.WebhookSecret, s.ledger, s.orders, s.chat, s.log)

	router.GET("/stripe/verify-deposit", verifyDepositHandler(s.classifier))
	router.POST("/stripe/deposits", createDepositHandler(s.intents, s.ledger, s.cfg.Stripe), apis.RequireRecordAuth())
	router.POST("/stripe/orders/:id/payment-intent", createOrderPaymentHandler(s.intents, s.orders, s.cfg.Stripe), apis.RequireRecordAuth())
	router.POST("/stripe/webhook", webhook.handle)

	router.GET("/balance", balanceHandler(s.ledger), apis.RequireRecordAuth())
	router.GET("/profiles/:id", profileHandler(s.profiles))
	router.POST("/chat/token", chatTokenHandler(s.chat), apis.RequireRecordAuth())

	router.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
