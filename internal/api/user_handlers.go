package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"parkspot/internal/auth"
	"parkspot/internal/entities"
	apperrors "parkspot/internal/errors"
	"parkspot/internal/repository"
	"parkspot/internal/service"
	"parkspot/internal/utils"
)

type UserReservationHandler struct {
	Reservations *service.ReservationService
	Availability *service.AvailabilityService
	Uniqueness   *service.UniquenessValidator
	Lots         *service.LotService
}

func NewUserReservationHandler(
	reservations *service.ReservationService,
	availability *service.AvailabilityService,
	uniqueness *service.UniquenessValidator,
	lots *service.LotService,
) *UserReservationHandler {
	return &UserReservationHandler{
		Reservations: reservations,
		Availability: availability,
		Uniqueness:   uniqueness,
		Lots:         lots,
	}
}

func (h *UserReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req entities.AvailabilityRequest
	if !decode(w, r, &req) {
		return
	}
	vt, err := utils.ParseVehicleType(req.VehicleType)
	if err != nil {
		apperrors.WriteError(w, apperrors.ErrBadRequest(err.Error()))
		return
	}
	res := h.Availability.CheckAvailability(r.Context(), entities.AvailabilityQuery{
		ParkingLotID: req.ParkingLotID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		VehicleType:  vt,
		Quantity:     req.Quantity,
	})
	writeJSON(w, availabilityStatus(res.Reason), res)
}

// availabilityStatus keeps decisions at 200 and maps lookup problems to
// their HTTP equivalents. The body is the full result either way.
func availabilityStatus(reason entities.AvailabilityReason) int {
	switch reason {
	case entities.ReasonNotFound:
		return http.StatusNotFound
	case entities.ReasonInvalid:
		return http.StatusBadRequest
	case entities.ReasonError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

func (h *UserReservationHandler) HourlyAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vt, err := utils.ParseVehicleType(q.Get("vehicle_type"))
	if err != nil {
		apperrors.WriteError(w, apperrors.ErrBadRequest(err.Error()))
		return
	}
	hours, err := h.Availability.GetHourlyAvailability(r.Context(), mux.Vars(r)["id"], q.Get("date"), vt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hours)
}

func (h *UserReservationHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.Lots.ListLots(r.Context(), repository.LotFilter{ActiveOnly: true})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *UserReservationHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.Lots.GetLot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (h *UserReservationHandler) ValidateReservation(w http.ResponseWriter, r *http.Request) {
	var req entities.UniquenessRequest
	if !decode(w, r, &req) {
		return
	}
	res := h.Uniqueness.ValidateReservationUniqueness(r.Context(), entities.UniquenessQuery{
		NumberPlate:  req.NumberPlate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		ParkingLotID: req.ParkingLotID,
		UserID:       auth.SubjectFromContext(r.Context()),
		ExcludeID:    req.ExcludeID,
	})
	status := http.StatusOK
	if res.Type == entities.ConflictValidationError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (h *UserReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req entities.ReservationRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.Reservations.Create(r.Context(), auth.SubjectFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *UserReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reservations.GetForUser(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UserReservationHandler) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reservations.ListForUser(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *UserReservationHandler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	var req entities.RescheduleRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.Reservations.Reschedule(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"], req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reservations.Cancel(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
