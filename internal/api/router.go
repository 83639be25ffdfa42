package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parkspot/internal/auth"
	"parkspot/internal/middleware"
)

// Handlers groups everything NewRouter mounts. Stripe and Limiter are
// optional.
type Handlers struct {
	User       *UserReservationHandler
	Vendor     *VendorHandler
	VendorAuth *VendorAuthHandler
	Stripe     *StripeWebhookHandler
	Tokens     *auth.TokenIssuer
	Limiter    *middleware.RateLimiter
}

func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Metrics)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Public endpoints
	public := r.PathPrefix("/api").Subrouter()
	if h.Limiter != nil {
		public.Use(h.Limiter.Middleware)
	}
	public.HandleFunc("/availability", h.User.CheckAvailability).Methods(http.MethodPost)
	public.HandleFunc("/lots", h.User.ListLots).Methods(http.MethodGet)
	public.HandleFunc("/lots/{id}", h.User.GetLot).Methods(http.MethodGet)
	public.HandleFunc("/lots/{id}/availability/hourly", h.User.HourlyAvailability).Methods(http.MethodGet)
	public.HandleFunc("/vendor/login", h.VendorAuth.Login).Methods(http.MethodPost)
	public.HandleFunc("/vendor/register", h.VendorAuth.Register).Methods(http.MethodPost)

	if h.Stripe != nil {
		r.HandleFunc("/api/webhooks/stripe", h.Stripe.HandleWebhook).Methods(http.MethodPost)
	}

	// User endpoints (protected)
	user := r.PathPrefix("/api").Subrouter()
	user.Use(auth.Middleware(h.Tokens, auth.RoleUser))
	user.HandleFunc("/reservations", h.User.CreateReservation).Methods(http.MethodPost)
	user.HandleFunc("/reservations/validate", h.User.ValidateReservation).Methods(http.MethodPost)
	user.HandleFunc("/reservations/{id}", h.User.GetReservation).Methods(http.MethodGet)
	user.HandleFunc("/reservations/{id}", h.User.UpdateReservation).Methods(http.MethodPut)
	user.HandleFunc("/reservations/{id}/cancel", h.User.CancelReservation).Methods(http.MethodPost)
	user.HandleFunc("/me/reservations", h.User.ListMyReservations).Methods(http.MethodGet)

	// Vendor endpoints (protected)
	vendor := r.PathPrefix("/api/vendor").Subrouter()
	vendor.Use(auth.Middleware(h.Tokens, auth.RoleVendor))
	vendor.HandleFunc("/lots", h.Vendor.ListLots).Methods(http.MethodGet)
	vendor.HandleFunc("/lots", h.Vendor.CreateLot).Methods(http.MethodPost)
	vendor.HandleFunc("/lots/{id}", h.Vendor.UpdateLot).Methods(http.MethodPut)
	vendor.HandleFunc("/lots/{id}/reservations", h.Vendor.ListReservations).Methods(http.MethodGet)
	vendor.HandleFunc("/reservations/{id}/check-in", h.Vendor.CheckIn).Methods(http.MethodPost)
	vendor.HandleFunc("/reservations/{id}/check-out", h.Vendor.CheckOut).Methods(http.MethodPost)

	return r
}
