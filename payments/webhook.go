package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var ErrInvalidSignature = errors.New("invalid stripe signature")

// Deposit is a succeeded balance deposit ready to be credited.
type Deposit struct {
	UserID          string
	PaymentIntentID string
	Amount          int64
	Currency        string
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func ParseWebhook(payload []byte, signatureHeader string, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		webhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	webhookEventsTotal.WithLabelValues(string(event.Type), "verified").Inc()
	return event, nil
}

func PaymentIntentFromEvent(event stripe.Event) (*stripe.PaymentIntent, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("event %s has no data", event.ID)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent from event %s: %w", event.ID, err)
	}

	return &intent, nil
}

// DepositFromIntent returns the deposit carried by a balance deposit intent.
// Intents that are not deposits, or carry no user, report false.
func DepositFromIntent(intent *stripe.PaymentIntent) (Deposit, bool) {
	if intent == nil || !IsBalanceDeposit(intent.Metadata) {
		return Deposit{}, false
	}

	userID := intent.Metadata[MetadataUserID]
	if userID == "" {
		return Deposit{}, false
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	return Deposit{
		UserID:          userID,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        string(intent.Currency),
	}, true
}
