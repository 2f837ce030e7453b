package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
)

// Processor is the subset of the Stripe API the marketplace depends on.
type Processor interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

type StripeProcessor struct {
	client *stripe.Client
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	return &StripeProcessor{
		client: stripe.NewClient(secretKey),
	}
}

func (p *StripeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	return p.client.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
}

func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return p.client.V1PaymentIntents.Create(ctx, params)
}
