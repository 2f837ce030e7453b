package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"boostify-backend/payments"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/models"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/zap"
)

const (
	verifyDepositFallbackMessage = "Failed to verify payment intent"
	maxWebhookBodyBytes          = 65536
	headerIdempotencyKey         = "Idempotency-Key"
)

func verifyDepositHandler(classifier *payments.Classifier) func(c echo.Context) error {
	return func(c echo.Context) error {
		result, err := classifier.Classify(c.Request().Context(), c.QueryParam("paymentIntentId"))
		if err != nil {
			if errors.Is(err, payments.ErrMissingParameter) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			}

			message := verifyDepositFallbackMessage
			var upstream *payments.UpstreamError
			if errors.As(err, &upstream) && upstream.Message != "" {
				message = upstream.Message
			}
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: message})
		}

		return c.JSON(http.StatusOK, result)
	}
}

func createDepositHandler(intents *payments.Intents, ledger LedgerStore, cfg stripeConfig) func(c echo.Context) error {
	return func(c echo.Context) error {
		record, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
		if !ok || record == nil {
			return apis.NewUnauthorizedError("unauthorized", nil)
		}

		var req depositRequest
		if err := c.Bind(&req); err != nil {
			return apis.NewBadRequestError("invalid payload", err)
		}

		currency := strings.ToLower(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = cfg.Currencies[0]
		}
		if !cfg.SupportsCurrency(currency) {
			return apis.NewBadRequestError("unsupported currency", nil)
		}
		if req.Amount < cfg.MinDepositAmount {
			return apis.NewBadRequestError("amount is below the minimum deposit", nil)
		}

		// the first deposit fixes the balance currency before any money moves
		if err := ledger.PinCurrency(record.Id, currency); err != nil {
			switch {
			case errors.Is(err, ErrCurrencyMismatch):
				return apis.NewBadRequestError("currency does not match balance currency", nil)
			case errors.Is(err, ErrUserNotFound):
				return apis.NewNotFoundError("user not found", nil)
			}
			return apis.NewApiError(http.StatusInternalServerError, "failed to prepare balance", err)
		}

		intent, err := intents.CreateDeposit(c.Request().Context(), payments.DepositIntentRequest{
			UserID:         record.Id,
			Amount:         req.Amount,
			Currency:       currency,
			IdempotencyKey: payments.DepositIdempotencyKey(record.Id, c.Request().Header.Get(headerIdempotencyKey)),
		})
		if err != nil {
			return apis.NewApiError(http.StatusBadGateway, "failed to create deposit payment intent", err)
		}

		return c.JSON(http.StatusOK, intent)
	}
}

func createOrderPaymentHandler(intents *payments.Intents, orders OrderStore, cfg stripeConfig) func(c echo.Context) error {
	return func(c echo.Context) error {
		record, ok := c.Get(apis.ContextAuthRecordKey).(*models.Record)
		if !ok || record == nil {
			return apis.NewUnauthorizedError("unauthorized", nil)
		}

		order, err := orders.FindOrder(c.PathParam("id"))
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return apis.NewNotFoundError("order not found", nil)
			}
			return apis.NewApiError(http.StatusInternalServerError, "failed to load order", err)
		}
		if order.ClientID != record.Id {
			return apis.NewForbiddenError("order belongs to another client", nil)
		}
		if order.Status != orderStatusPendingPayment {
			return apis.NewApiError(http.StatusConflict, "order is not awaiting payment", nil)
		}

		fee := payments.PlatformFee(order.Amount, cfg.PlatformFeePercent)
		ctx := c.Request().Context()

		// an order keeps a single payable intent, so a second checkout cannot
		// charge the client twice
		if order.PaymentIntentID != "" {
			intent, reusable, err := intents.Reuse(ctx, order.PaymentIntentID)
			switch {
			case errors.Is(err, payments.ErrIntentSettled):
				return apis.NewApiError(http.StatusConflict, "order payment already submitted", nil)
			case err != nil:
				return apis.NewApiError(http.StatusBadGateway, "failed to load order payment intent", err)
			case reusable:
				return c.JSON(http.StatusOK, orderPaymentResponse{
					PaymentIntentID: intent.ID,
					ClientSecret:    intent.ClientSecret,
					PlatformFee:     fee,
				})
			}
		}

		intent, err := intents.CreateOrderPayment(ctx, payments.OrderIntentRequest{
			OrderID:        order.ID,
			UserID:         record.Id,
			Amount:         order.Amount,
			Currency:       order.Currency,
			PlatformFee:    fee,
			IdempotencyKey: payments.OrderIdempotencyKey(order.ID, order.PaymentIntentID),
		})
		if err != nil {
			return apis.NewApiError(http.StatusBadGateway, "failed to create order payment intent", err)
		}

		if err := orders.AttachPaymentIntent(order.ID, intent.ID); err != nil {
			return apis.NewApiError(http.StatusInternalServerError, "failed to save order payment intent", err)
		}

		return c.JSON(http.StatusOK, orderPaymentResponse{
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
			PlatformFee:     fee,
		})
	}
}

type stripeWebhook struct {
	secret string
	ledger LedgerStore
	orders OrderStore
	chat   ChatService
	log    *zap.Logger
}

func newStripeWebhook(secret string, ledger LedgerStore, orders OrderStore, chat ChatService, log *zap.Logger) *stripeWebhook {
	return &stripeWebhook{
		secret: secret,
		ledger: ledger,
		orders: orders,
		chat:   chat,
		log:    log.Named("stripe-webhook"),
	}
}

func (w *stripeWebhook) handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes))
	if err != nil {
		return apis.NewBadRequestError("invalid payload", err)
	}

	event, err := payments.ParseWebhook(body, c.Request().Header.Get("Stripe-Signature"), w.secret)
	if err != nil {
		w.log.Warn("rejected webhook", zap.Error(err))
		return apis.NewBadRequestError("invalid signature", nil)
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return c.JSON(http.StatusOK, map[string]any{"received": true})
	}

	intent, err := payments.PaymentIntentFromEvent(event)
	if err != nil {
		return apis.NewBadRequestError("invalid payment intent payload", err)
	}

	switch intent.Metadata[payments.MetadataType] {
	case payments.TypeBalanceDeposit:
		if err := w.creditDeposit(intent); err != nil {
			return err
		}
	case payments.TypeOrderPayment:
		if err := w.settleOrder(c.Request().Context(), intent); err != nil {
			return err
		}
	default:
		w.log.Debug("ignoring untagged payment intent", zap.String("payment_intent_id", intent.ID))
	}

	return c.JSON(http.StatusOK, map[string]any{"received": true})
}

func (w *stripeWebhook) creditDeposit(intent *stripe.PaymentIntent) error {
	deposit, ok := payments.DepositFromIntent(intent)
	if !ok {
		w.log.Warn("deposit intent without user", zap.String("payment_intent_id", intent.ID))
		return nil
	}

	credited, err := w.ledger.CreditDeposit(deposit)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrCurrencyMismatch) {
			w.log.Error("deposit cannot be credited",
				zap.String("payment_intent_id", deposit.PaymentIntentID),
				zap.String("user_id", deposit.UserID),
				zap.Error(err),
			)
			return nil
		}
		return apis.NewApiError(http.StatusInternalServerError, "failed to credit deposit", err)
	}

	w.log.Info("deposit processed",
		zap.String("payment_intent_id", deposit.PaymentIntentID),
		zap.String("user_id", deposit.UserID),
		zap.Int64("amount", deposit.Amount),
		zap.Bool("credited", credited),
	)
	return nil
}

func (w *stripeWebhook) settleOrder(ctx context.Context, intent *stripe.PaymentIntent) error {
	orderID := intent.Metadata[payments.MetadataOrderID]
	if orderID == "" {
		w.log.Warn("order payment intent without order", zap.String("payment_intent_id", intent.ID))
		return nil
	}

	order, changed, err := w.orders.MarkPaid(orderID, intent.ID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrOrderNotPayable) || errors.Is(err, ErrOrderAlreadyPaid) {
			w.log.Error("order payment cannot be applied",
				zap.String("payment_intent_id", intent.ID),
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			return nil
		}
		return apis.NewApiError(http.StatusInternalServerError, "failed to settle order", err)
	}
	if !changed && order.StreamChannelID != "" {
		return nil
	}

	if changed && intent.Amount != order.Amount {
		w.log.Warn("order paid with unexpected amount",
			zap.String("order_id", order.ID),
			zap.Int64("expected", order.Amount),
			zap.Int64("paid", intent.Amount),
		)
	}

	// the order stays paid; a failure here asks Stripe to redeliver, and the
	// redelivery lands in the !changed branch above with no channel yet
	channelID, err := w.chat.OpenOrderChannel(ctx, order)
	if err != nil {
		w.log.Error("failed to open order channel", zap.String("order_id", order.ID), zap.Error(err))
		return apis.NewApiError(http.StatusInternalServerError, "failed to open order channel", err)
	}
	if err := w.orders.SetChatChannel(order.ID, channelID); err != nil {
		w.log.Error("failed to save order channel", zap.String("order_id", order.ID), zap.Error(err))
		return apis.NewApiError(http.StatusInternalServerError, "failed to save order channel", err)
	}

	return nil
}
