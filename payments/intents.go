package payments

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/zap"
)

type DepositIntentRequest struct {
	UserID         string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

type OrderIntentRequest struct {
	OrderID        string
	UserID         string
	Amount         int64
	Currency       string
	PlatformFee    int64
	IdempotencyKey string
}

type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
}

// ErrIntentSettled is returned by Reuse when the intent can no longer take a payment
// because it already succeeded.
var ErrIntentSettled = errors.New("payment intent already succeeded")

// OrderIdempotencyKey is stable for an order, so concurrent or retried checkouts
// converge on one Stripe intent. previousIntentID rotates the key once an
// earlier intent for the order was canceled.
func OrderIdempotencyKey(orderID string, previousIntentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("order_payment:"+orderID+":"+previousIntentID)).String()
}

// DepositIdempotencyKey scopes a client supplied key to its user. An empty
// client key yields an empty result and stripe-go generates its own.
func DepositIdempotencyKey(userID string, clientKey string) string {
	if clientKey == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("balance_deposit:"+userID+":"+clientKey)).String()
}

// PlatformFee returns percent of amount, rounded to the nearest minor unit.
func PlatformFee(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}

type Intents struct {
	processor Processor
	log       *zap.Logger
}

func NewIntents(processor Processor, log *zap.Logger) *Intents {
	return &Intents{
		processor: processor,
		log:       log.Named("payment-intents"),
	}
}

func (s *Intents) CreateDeposit(ctx context.Context, req DepositIntentRequest) (Intent, error) {
	if req.UserID == "" || req.Amount <= 0 || req.Currency == "" {
		return Intent{}, errors.New("deposit requires user, positive amount and currency")
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String("Boostify balance deposit"),
	}
	params.AddMetadata(MetadataType, TypeBalanceDeposit)
	params.AddMetadata(MetadataUserID, req.UserID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	return s.create(ctx, TypeBalanceDeposit, params)
}

func (s *Intents) CreateOrderPayment(ctx context.Context, req OrderIntentRequest) (Intent, error) {
	if req.OrderID == "" || req.UserID == "" || req.Amount <= 0 || req.Currency == "" {
		return Intent{}, errors.New("order payment requires order, user, positive amount and currency")
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String("Boostify order " + req.OrderID),
	}
	params.AddMetadata(MetadataType, TypeOrderPayment)
	params.AddMetadata(MetadataOrderID, req.OrderID)
	params.AddMetadata(MetadataUserID, req.UserID)
	params.AddMetadata(MetadataPlatformFee, strconv.FormatInt(req.PlatformFee, 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	return s.create(ctx, TypeOrderPayment, params)
}

// Reuse returns an already created intent when it can still be paid. ok is
// false for canceled intents, which need a replacement.
func (s *Intents) Reuse(ctx context.Context, id string) (intent Intent, ok bool, err error) {
	existing, err := s.processor.RetrievePaymentIntent(ctx, id)
	if err != nil {
		s.log.Error("failed to load payment intent", zap.String("payment_intent_id", id), zap.Error(err))
		return Intent{}, false, newUpstreamError(err)
	}

	switch existing.Status {
	case stripe.PaymentIntentStatusCanceled:
		return Intent{}, false, nil
	case stripe.PaymentIntentStatusSucceeded:
		return Intent{}, false, ErrIntentSettled
	}

	return Intent{ID: existing.ID, ClientSecret: existing.ClientSecret}, true, nil
}

func (s *Intents) create(ctx context.Context, intentType string, params *stripe.PaymentIntentCreateParams) (Intent, error) {
	intent, err := s.processor.CreatePaymentIntent(ctx, params)
	if err != nil {
		s.log.Error("failed to create payment intent", zap.String("type", intentType), zap.Error(err))
		intentsCreatedTotal.WithLabelValues(intentType, "error").Inc()
		return Intent{}, newUpstreamError(err)
	}

	intentsCreatedTotal.WithLabelValues(intentType, "ok").Inc()
	s.log.Info("payment intent created", zap.String("type", intentType), zap.String("payment_intent_id", intent.ID))

	return Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}
