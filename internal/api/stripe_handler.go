package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	apperrors "parkspot/internal/errors"
	"parkspot/internal/logging"
	"parkspot/internal/repository"
	"parkspot/internal/service"
)

type StripeWebhookHandler struct {
	WebhookSecret      string
	reservationService *service.ReservationService
}

func NewStripeWebhookHandler(webhookSecret string, reservationService *service.ReservationService) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		WebhookSecret:      webhookSecret,
		reservationService: reservationService,
	}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("stripe webhook: error reading body")
		apperrors.WriteError(w, apperrors.ErrBadRequest("unreadable body"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("stripe webhook: signature verification failed")
		apperrors.WriteError(w, apperrors.ErrBadRequest("invalid signature"))
		return
	}
	log := logging.Ctx(r.Context()).With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	var intentID string
	var apply func(paymentIntentID string) error
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Warn().Err(err).Msg("stripe webhook: invalid payment intent payload")
			apperrors.WriteError(w, apperrors.ErrBadRequest("invalid payload"))
			return
		}
		intentID = pi.ID
		if event.Type == "payment_intent.succeeded" {
			apply = func(id string) error { return h.reservationService.ConfirmPayment(r.Context(), id) }
		} else {
			apply = func(id string) error { return h.reservationService.FailPayment(r.Context(), id) }
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			log.Warn().Err(err).Msg("stripe webhook: invalid charge payload")
			apperrors.WriteError(w, apperrors.ErrBadRequest("invalid payload"))
			return
		}
		if charge.PaymentIntent != nil {
			intentID = charge.PaymentIntent.ID
		}
		apply = func(id string) error { return h.reservationService.MarkRefunded(r.Context(), id) }
	default:
		log.Debug().Msg("stripe webhook: unhandled event type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if intentID == "" {
		log.Warn().Msg("stripe webhook: event without payment intent")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := apply(intentID); err != nil {
		// Intents created outside this service are acknowledged so Stripe
		// stops retrying them.
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("payment_intent", intentID).Msg("stripe webhook: no reservation for payment intent")
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Error().Err(err).Str("payment_intent", intentID).Msg("stripe webhook: failed to apply event")
		apperrors.WriteError(w, apperrors.ErrInternal())
		return
	}
	log.Info().Str("payment_intent", intentID).Msg("stripe webhook: event applied")
	w.WriteHeader(http.StatusOK)
}
