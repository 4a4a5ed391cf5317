// Package payments records a checkout with a payment provider. The service
// runs without one unless a Stripe key is configured.
package payments

import (
	"context"
	"fmt"

	"needsmatch/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

// Charger registers the total of a checkout with a payment provider and
// returns the provider's reference for it. Collecting the money is left to
// the client, which confirms the payment with that reference.
type Charger interface {
	Charge(ctx context.Context, receipt *types.CheckoutReceipt) (string, error)
}

// Noop accepts every checkout without contacting anyone.
type Noop struct{}

func (Noop) Charge(context.Context, *types.CheckoutReceipt) (string, error) {
	return "", nil
}

type StripeCharger struct {
	client   *stripe.Client
	currency string
}

func NewStripeCharger(secretKey, currency string) *StripeCharger {
	return &StripeCharger{
		client:   stripe.NewClient(secretKey),
		currency: currency,
	}
}

// Charge creates an unconfirmed PaymentIntent for the checkout total. No
// payment method is attached, so nothing is authorized or captured here.
// The user id and record count travel in the metadata so the payment can be
// matched back later.
func (c *StripeCharger) Charge(ctx context.Context, receipt *types.CheckoutReceipt) (string, error) {
	cents := MinorUnits(receipt.Total)
	if cents <= 0 {
		return "", nil
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(c.currency),
		Description: stripe.String(fmt.Sprintf("needsmatch checkout for user %s", receipt.UserID)),
		Metadata: map[string]string{
			"user_id": receipt.UserID,
			"records": fmt.Sprintf("%d", len(receipt.Records)),
		},
	}
	if len(receipt.Records) > 0 {
		params.Metadata["first_record_id"] = receipt.Records[0].ID
	}

	intent, err := c.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent.ID, nil
}

// MinorUnits converts a decimal amount to cents, rounding half away from
// zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// New returns a Stripe charger when a key is configured and a no-op charger
// otherwise.
func New(config *types.Config) Charger {
	if config.StripeSecretKey == "" {
		return Noop{}
	}
	return NewStripeCharger(config.StripeSecretKey, config.StripeCurrency)
}
