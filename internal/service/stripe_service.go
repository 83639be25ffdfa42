package service

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"

	"parkspot/internal/db"
)

// PaymentGateway creates, cancels and refunds card payments for reservations.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, res *db.Reservation) (intentID, clientSecret string, err error)
	// CancelPaymentIntent stops an unpaid intent from being paid later.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error
	Refund(ctx context.Context, paymentIntentID string) error
}

type StripeService struct{}

// NewStripeService sets the global Stripe key.
func NewStripeService(secretKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{}
}

func (s *StripeService) CreatePaymentIntent(ctx context.Context, res *db.Reservation) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(res.AmountCents),
		Currency:     stripe.String(res.Currency),
		ReceiptEmail: stripe.String(res.Email),
		Description:  stripe.String(fmt.Sprintf("Parking reservation %s (%s, %dh)", res.ID, res.NumberPlate, res.DurationHours)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("reservation_id", res.ID)
	params.AddMetadata("parking_lot_id", res.ParkingLotID)
	params.SetIdempotencyKey("reservation-" + res.ID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("error creating payment intent: %w", err)
	}
	return pi.ID, pi.ClientSecret, nil
}

func (s *StripeService) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("error refunding payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}

func (s *StripeService) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	if _, err := paymentintent.Cancel(paymentIntentID, params); err != nil {
		return fmt.Errorf("error cancelling payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}
