// Package payments wraps the Stripe payment intents used by the marketplace:
// deposit verification, intent creation and webhook decoding.
package payments

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/zap"
)

const (
	MetadataType        = "type"
	MetadataUserID      = "user_id"
	MetadataOrderID     = "order_id"
	MetadataPlatformFee = "platform_fee"

	TypeBalanceDeposit = "balance_deposit"
	TypeOrderPayment   = "order_payment"
)

var ErrMissingParameter = errors.New("paymentIntentId is required")

// UpstreamError is returned when the payment processor call fails. Message
// holds the processor's own description of the failure.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func newUpstreamError(err error) *UpstreamError {
	message := err.Error()

	// stripe.Error renders as JSON; the human readable text lives in Msg.
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		message = stripeErr.Msg
	}

	return &UpstreamError{Message: message, Err: err}
}

type Classification struct {
	IsDeposit bool              `json:"isDeposit"`
	Metadata  map[string]string `json:"metadata"`
}

// IsBalanceDeposit reports whether metadata tags an intent as a balance deposit.
func IsBalanceDeposit(metadata map[string]string) bool {
	return metadata[MetadataType] == TypeBalanceDeposit
}

type Classifier struct {
	processor Processor
	log       *zap.Logger
}

func NewClassifier(processor Processor, log *zap.Logger) *Classifier {
	return &Classifier{
		processor: processor,
		log:       log.Named("verify-deposit"),
	}
}

// Classify fetches the payment intent and reports whether it is a balance
// deposit, along with a copy of its metadata.
func (c *Classifier) Classify(ctx context.Context, paymentIntentID string) (Classification, error) {
	if paymentIntentID == "" {
		c.log.Warn("missing payment intent id")
		classificationsTotal.WithLabelValues("missing_parameter").Inc()
		return Classification{}, ErrMissingParameter
	}

	intent, err := c.processor.RetrievePaymentIntent(ctx, paymentIntentID)
	if err != nil {
		c.log.Error("failed to retrieve payment intent",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err),
		)
		classificationsTotal.WithLabelValues("upstream_failure").Inc()
		return Classification{}, newUpstreamError(err)
	}

	metadata := make(map[string]string)
	if intent != nil {
		for key, value := range intent.Metadata {
			metadata[key] = value
		}
	}

	result := Classification{
		IsDeposit: IsBalanceDeposit(metadata),
		Metadata:  metadata,
	}

	if result.IsDeposit {
		classificationsTotal.WithLabelValues("deposit").Inc()
	} else {
		classificationsTotal.WithLabelValues("not_deposit").Inc()
	}

	return result, nil
}
