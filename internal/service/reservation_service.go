package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/events"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
	"parkspot/internal/repository"
	"parkspot/internal/utils"
)

const (
	paymentRequired  = "requires_payment"
	paymentSucceeded = "succeeded"
	paymentFailed    = "failed"
	paymentRefunded  = "refunded"
	paymentRefundErr = "refund_failed"
	paymentCanceled  = "canceled"
	paymentOnSite    = "on_site"
	paymentFree      = "free"
)

type ReservationDeps struct {
	Lots         repository.LotStore
	Reservations repository.ReservationStore
	Availability *AvailabilityService
	Uniqueness   *UniquenessValidator
	// Payments is nil when card payments are not configured; reservations
	// are then confirmed immediately and paid on site.
	Payments PaymentGateway
	Events   events.Publisher
	Currency string
	Now      func() time.Time
}

type ReservationService struct {
	lots         repository.LotStore
	repo         repository.ReservationStore
	availability *AvailabilityService
	uniqueness   *UniquenessValidator
	payments     PaymentGateway
	events       events.Publisher
	currency     string
	now          func() time.Time
}

func NewReservationService(d ReservationDeps) *ReservationService {
	s := &ReservationService{
		lots:         d.Lots,
		repo:         d.Reservations,
		availability: d.Availability,
		uniqueness:   d.Uniqueness,
		payments:     d.Payments,
		events:       d.Events,
		currency:     d.Currency,
		now:          d.Now,
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.currency == "" {
		s.currency = "inr"
	}
	return s
}

// Create books a space. Uniqueness, availability and the insert run under the
// lot lock and the plate lock, so two requests for the last space cannot both
// succeed and one vehicle cannot be booked twice for overlapping windows.
func (s *ReservationService) Create(ctx context.Context, userID string, req entities.ReservationRequest) (*entities.BookingResponse, error) {
	vt, err := utils.ParseVehicleType(req.VehicleType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	plate := utils.NormalizePlate(req.NumberPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: number plate is required", ErrInvalidRequest)
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if err := s.checkWindow(start, end); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := &db.Reservation{
		ID:              uuid.NewString(),
		ParkingLotID:    req.ParkingLotID,
		UserID:          userID,
		VehicleType:     vt,
		NumberPlate:     plate,
		StartTime:       start,
		EndTime:         end,
		DurationHours:   db.DurationHours(start, end),
		Status:          db.StatusPending,
		VehicleTimeHash: GenerateReservationHash(plate, start, end, req.ParkingLotID),
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Currency:        s.currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var (
		lot   *db.ParkingLot
		quote entities.PriceQuote
	)
	err = s.repo.WithLotLock(ctx, res.ParkingLotID, vt, func(ctx context.Context) error {
		if err := s.repo.LockPlate(ctx, plate); err != nil {
			return err
		}
		var err error
		lot, err = s.admit(ctx, res, "")
		if err != nil {
			return err
		}
		quote = s.quote(lot, vt, res.DurationHours)
		res.AmountCents = quote.AmountCents
		switch {
		case quote.AmountCents == 0:
			res.Status, res.PaymentStatus = db.StatusConfirmed, paymentFree
		case s.payments == nil:
			res.Status, res.PaymentStatus = db.StatusConfirmed, paymentOnSite
		default:
			res.PaymentStatus = paymentRequired
		}
		return s.repo.CreateReservation(ctx, res)
	})
	if err != nil {
		return nil, duplicateAsConflict(err)
	}
	metrics.RecordTransition(string(res.Status), "api")

	resp := &entities.BookingResponse{Reservation: res, Price: quote}
	if res.Status == db.StatusPending {
		intentID, secret, err := s.payments.CreatePaymentIntent(ctx, res)
		if err != nil {
			s.release(ctx, res)
			return nil, err
		}
		if err := s.repo.UpdatePayment(ctx, res.ID, intentID, paymentRequired); err != nil {
			return nil, err
		}
		res.PaymentIntentID = intentID
		resp.ClientSecret = secret
	}

	logging.Ctx(ctx).Info().
		Str("reservation_id", res.ID).
		Str("lot_id", res.ParkingLotID).
		Str("status", string(res.Status)).
		Int64("amount_cents", res.AmountCents).
		Msg("reservation created")
	s.publish(ctx, events.ReservationCreated, res, lot)
	if res.Status == db.StatusConfirmed {
		s.publish(ctx, events.ReservationConfirmed, res, lot)
	}
	return resp, nil
}

// Reschedule moves a pending or confirmed reservation to a new window. The
// reservation itself is excluded from its own uniqueness and capacity checks.
func (s *ReservationService) Reschedule(ctx context.Context, userID, id string, req entities.RescheduleRequest) (*entities.BookingResponse, error) {
	res, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if res.Status != db.StatusPending && res.Status != db.StatusConfirmed {
		return nil, fmt.Errorf("%w: cannot reschedule a %s reservation", ErrInvalidTransition, res.Status)
	}
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if err := s.checkWindow(start, end); err != nil {
		return nil, err
	}

	updated := *res
	updated.StartTime, updated.EndTime = start, end
	updated.DurationHours = db.DurationHours(start, end)
	updated.VehicleTimeHash = GenerateReservationHash(res.NumberPlate, start, end, res.ParkingLotID)
	updated.UpdatedAt = s.now().UTC()
	if res.PaymentIntentID != "" && updated.DurationHours != res.DurationHours {
		return nil, fmt.Errorf("%w: a paid reservation keeps its duration of %d hours", ErrInvalidRequest, res.DurationHours)
	}

	var (
		lot   *db.ParkingLot
		quote entities.PriceQuote
	)
	err = s.repo.WithLotLock(ctx, res.ParkingLotID, res.VehicleType, func(ctx context.Context) error {
		if err := s.repo.LockPlate(ctx, res.NumberPlate); err != nil {
			return err
		}
		var err error
		lot, err = s.admit(ctx, &updated, res.ID)
		if err != nil {
			return err
		}
		quote = s.quote(lot, res.VehicleType, updated.DurationHours)
		if res.PaymentIntentID == "" {
			updated.AmountCents = quote.AmountCents
		}
		return s.repo.UpdateReservationWindow(ctx, &updated)
	})
	if err != nil {
		return nil, duplicateAsConflict(err)
	}

	s.publish(ctx, events.ReservationRescheduled, &updated, lot)
	return &entities.BookingResponse{Reservation: &updated, Price: quote}, nil
}

// Cancel cancels a reservation owned by userID. A captured payment is refunded
// and an unpaid intent is cancelled.
func (s *ReservationService) Cancel(ctx context.Context, userID, id string) (*db.Reservation, error) {
	res, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, res, db.StatusCancelled, "api"); err != nil {
		return nil, err
	}

	if res.PaymentStatus == paymentSucceeded {
		if err := s.refund(ctx, res); err != nil {
			return nil, err
		}
	} else {
		s.cancelIntent(ctx, res)
	}

	s.publish(ctx, events.ReservationCancelled, res, s.lotOrNil(ctx, res.ParkingLotID))
	return res, nil
}

// CheckIn marks a confirmed reservation active. vendorID must own the lot.
func (s *ReservationService) CheckIn(ctx context.Context, vendorID, id string) (*db.Reservation, error) {
	return s.vendorTransition(ctx, vendorID, id, db.StatusActive)
}

// CheckOut marks an active reservation completed.
func (s *ReservationService) CheckOut(ctx context.Context, vendorID, id string) (*db.Reservation, error) {
	return s.vendorTransition(ctx, vendorID, id, db.StatusCompleted)
}

func (s *ReservationService) vendorTransition(ctx context.Context, vendorID, id string, to db.ReservationStatus) (*db.Reservation, error) {
	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedLot(ctx, vendorID, res.ParkingLotID); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, res, to, "vendor"); err != nil {
		return nil, err
	}
	return res, nil
}

// ConfirmPayment handles a succeeded payment intent. Repeated deliveries are
// harmless. A payment that lands after the reservation was cancelled is
// refunded.
func (s *ReservationService) ConfirmPayment(ctx context.Context, paymentIntentID string) error {
	res, err := s.repo.GetReservationByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if res.Status == db.StatusCancelled {
		if res.PaymentStatus == paymentRefunded || res.PaymentStatus == paymentRefundErr {
			return nil
		}
		logging.Ctx(ctx).Warn().Str("reservation_id", res.ID).Msg("payment succeeded for cancelled reservation, refunding")
		res.PaymentStatus = paymentSucceeded
		return s.refund(ctx, res)
	}
	if err := s.repo.UpdatePayment(ctx, res.ID, paymentIntentID, paymentSucceeded); err != nil {
		return err
	}
	res.PaymentStatus = paymentSucceeded
	if res.Status != db.StatusPending {
		return nil
	}
	if err := s.transition(ctx, res, db.StatusConfirmed, "webhook"); err != nil {
		return err
	}
	s.publish(ctx, events.ReservationConfirmed, res, s.lotOrNil(ctx, res.ParkingLotID))
	return nil
}

// FailPayment cancels the pending reservation of a failed payment intent and
// then the intent itself, so no retry can charge for a released space. Late
// failures of an intent that already succeeded are ignored.
func (s *ReservationService) FailPayment(ctx context.Context, paymentIntentID string) error {
	res, err := s.repo.GetReservationByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if res.Status != db.StatusPending || res.PaymentStatus == paymentSucceeded {
		logging.Ctx(ctx).Info().Str("reservation_id", res.ID).Str("status", string(res.Status)).Msg("payment failure ignored")
		return nil
	}
	if err := s.closePayment(ctx, res, paymentFailed); err != nil {
		return err
	}
	s.cancelIntent(ctx, res)
	return nil
}

// MarkRefunded records a refund issued outside Cancel, e.g. from the Stripe
// dashboard, and cancels the reservation if it is still open.
func (s *ReservationService) MarkRefunded(ctx context.Context, paymentIntentID string) error {
	res, err := s.repo.GetReservationByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	return s.closePayment(ctx, res, paymentRefunded)
}

// CancelOpenPayments cancels the unpaid intents of reservations that were
// cancelled outside this service, such as by the pending-expiry job.
func (s *ReservationService) CancelOpenPayments(ctx context.Context, ids []string) {
	for _, id := range ids {
		res, err := s.repo.GetReservation(ctx, id)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("reservation_id", id).Msg("failed to load expired reservation")
			continue
		}
		if res.Status == db.StatusCancelled {
			s.cancelIntent(ctx, res)
		}
	}
}

func (s *ReservationService) closePayment(ctx context.Context, res *db.Reservation, paymentStatus string) error {
	if err := s.repo.UpdatePayment(ctx, res.ID, res.PaymentIntentID, paymentStatus); err != nil {
		return err
	}
	res.PaymentStatus = paymentStatus
	if !res.Status.CanTransitionTo(db.StatusCancelled) {
		return nil
	}
	if err := s.transition(ctx, res, db.StatusCancelled, "webhook"); err != nil {
		return err
	}
	s.publish(ctx, events.ReservationCancelled, res, s.lotOrNil(ctx, res.ParkingLotID))
	return nil
}

func (s *ReservationService) Get(ctx context.Context, id string) (*db.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

// GetForUser returns the reservation only if userID booked it.
func (s *ReservationService) GetForUser(ctx context.Context, userID, id string) (*db.Reservation, error) {
	res, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, fmt.Errorf("%w: reservation %s", ErrForbidden, id)
	}
	return res, nil
}

func (s *ReservationService) ListForUser(ctx context.Context, userID string) (*entities.ReservationsList, error) {
	list, err := s.repo.FindReservations(ctx, repository.ReservationFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return &entities.ReservationsList{Total: len(list), Reservations: orEmpty(list)}, nil
}

// ListForLot lists a vendor's lot reservations, optionally limited to the
// given statuses and to those overlapping [from, to).
func (s *ReservationService) ListForLot(ctx context.Context, vendorID, lotID string, statuses []db.ReservationStatus, from, to time.Time) (*entities.ReservationsList, error) {
	if _, err := s.ownedLot(ctx, vendorID, lotID); err != nil {
		return nil, err
	}
	list, err := s.repo.FindReservations(ctx, repository.ReservationFilter{
		ParkingLotID: lotID,
		Statuses:     statuses,
		OverlapStart: from,
		OverlapEnd:   to,
	})
	if err != nil {
		return nil, err
	}
	return &entities.ReservationsList{Total: len(list), Reservations: orEmpty(list)}, nil
}

// admit runs the uniqueness and availability checks for res. It must be
// called under the lot lock.
func (s *ReservationService) admit(ctx context.Context, res *db.Reservation, excludeID string) (*db.ParkingLot, error) {
	u := s.uniqueness.ValidateReservationUniqueness(ctx, entities.UniquenessQuery{
		NumberPlate:  res.NumberPlate,
		StartTime:    res.StartTime,
		EndTime:      res.EndTime,
		ParkingLotID: res.ParkingLotID,
		UserID:       res.UserID,
		ExcludeID:    excludeID,
	})
	if !u.IsValid {
		return nil, &ConflictError{Result: u}
	}

	a := s.availability.CheckAvailability(ctx, entities.AvailabilityQuery{
		ParkingLotID:         res.ParkingLotID,
		StartTime:            res.StartTime,
		EndTime:              res.EndTime,
		VehicleType:          res.VehicleType,
		Quantity:             1,
		ExcludeReservationID: excludeID,
	})
	if !a.Available {
		return nil, &UnavailableError{Result: a}
	}
	return s.lots.GetLot(ctx, res.ParkingLotID)
}

func (s *ReservationService) quote(lot *db.ParkingLot, vt db.VehicleType, hours int) entities.PriceQuote {
	rate := lot.HourlyRates[vt]
	return entities.PriceQuote{
		VehicleType:     vt,
		DurationHours:   hours,
		HourlyRateCents: rate,
		AmountCents:     rate * int64(hours),
		Currency:        s.currency,
	}
}

func (s *ReservationService) checkWindow(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidRequest)
	}
	if start.Before(s.now().Add(-time.Minute)) {
		return fmt.Errorf("%w: start time is in the past", ErrInvalidRequest)
	}
	return nil
}

// transition applies a lifecycle move guarded by the current status. A
// concurrent change surfaces as ErrInvalidTransition.
func (s *ReservationService) transition(ctx context.Context, res *db.Reservation, to db.ReservationStatus, source string) error {
	if !res.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, res.Status, to)
	}
	if err := s.repo.UpdateReservationStatus(ctx, res.ID, res.Status, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: reservation %s changed concurrently", ErrInvalidTransition, res.ID)
		}
		return err
	}
	logging.Ctx(ctx).Info().
		Str("reservation_id", res.ID).
		Str("from", string(res.Status)).
		Str("to", string(to)).
		Str("source", source).
		Msg("reservation status changed")
	metrics.RecordTransition(string(to), source)
	res.Status = to
	res.UpdatedAt = s.now().UTC()
	return nil
}

// refund returns a captured payment and records the outcome. A gateway error is
// recorded as refund_failed rather than returned.
func (s *ReservationService) refund(ctx context.Context, res *db.Reservation) error {
	if s.payments == nil || res.PaymentIntentID == "" {
		return nil
	}
	status := paymentRefunded
	if err := s.payments.Refund(ctx, res.PaymentIntentID); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("reservation_id", res.ID).Msg("refund failed")
		status = paymentRefundErr
	}
	if err := s.repo.UpdatePayment(ctx, res.ID, res.PaymentIntentID, status); err != nil {
		return err
	}
	res.PaymentStatus = status
	return nil
}

// cancelIntent cancels the intent of an unpaid reservation. Failures are only
// logged: should the intent still be paid, ConfirmPayment refunds it.
func (s *ReservationService) cancelIntent(ctx context.Context, res *db.Reservation) {
	if s.payments == nil || res.PaymentIntentID == "" {
		return
	}
	if res.PaymentStatus != paymentRequired && res.PaymentStatus != paymentFailed {
		return
	}
	if err := s.payments.CancelPaymentIntent(ctx, res.PaymentIntentID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("reservation_id", res.ID).Msg("payment intent not cancelled")
		return
	}
	if err := s.repo.UpdatePayment(ctx, res.ID, res.PaymentIntentID, paymentCanceled); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("reservation_id", res.ID).Msg("failed to record cancelled payment intent")
		return
	}
	res.PaymentStatus = paymentCanceled
}

// release cancels a pending reservation whose payment could not be started,
// so it stops holding capacity.
func (s *ReservationService) release(ctx context.Context, res *db.Reservation) {
	if err := s.transition(ctx, res, db.StatusCancelled, "api"); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("reservation_id", res.ID).Msg("failed to release reservation")
	}
}

// duplicateAsConflict reports a unique-index rejection on vehicle_time_hash as
// an exact-duplicate conflict.
func duplicateAsConflict(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return &ConflictError{Result: entities.UniquenessResult{
			Type:    entities.ConflictExactDuplicate,
			Message: "an identical reservation for this vehicle already exists",
		}}
	}
	return err
}

func (s *ReservationService) ownedLot(ctx context.Context, vendorID, lotID string) (*db.ParkingLot, error) {
	lot, err := s.lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.VendorID != vendorID {
		return nil, fmt.Errorf("%w: parking lot %s", ErrForbidden, lotID)
	}
	return lot, nil
}

func (s *ReservationService) lotOrNil(ctx context.Context, lotID string) *db.ParkingLot {
	lot, err := s.lots.GetLot(ctx, lotID)
	if err != nil {
		return nil
	}
	return lot
}

func (s *ReservationService) publish(ctx context.Context, t events.Type, res *db.Reservation, lot *db.ParkingLot) {
	if err := s.events.Publish(ctx, events.NewReservationEvent(t, res, lot)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", string(t)).Str("reservation_id", res.ID).Msg("event not published")
	}
}

func orEmpty(list []db.Reservation) []db.Reservation {
	if list == nil {
		return []db.Reservation{}
	}
	return list
}
