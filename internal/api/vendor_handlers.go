package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"parkspot/internal/auth"
	"parkspot/internal/db"
	"parkspot/internal/entities"
	apperrors "parkspot/internal/errors"
	"parkspot/internal/repository"
	"parkspot/internal/service"
)

type VendorHandler struct {
	Lots         *service.LotService
	Reservations *service.ReservationService
}

func NewVendorHandler(lots *service.LotService, reservations *service.ReservationService) *VendorHandler {
	return &VendorHandler{Lots: lots, Reservations: reservations}
}

func (h *VendorHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.Lots.ListLots(r.Context(), repository.LotFilter{VendorID: auth.SubjectFromContext(r.Context())})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *VendorHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req entities.LotRequest
	if !decode(w, r, &req) {
		return
	}
	lot, err := h.Lots.CreateLot(r.Context(), auth.SubjectFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

func (h *VendorHandler) UpdateLot(w http.ResponseWriter, r *http.Request) {
	var req entities.LotRequest
	if !decode(w, r, &req) {
		return
	}
	lot, err := h.Lots.UpdateLot(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"], req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// ListReservations accepts ?status=a,b and an RFC 3339 ?from=&to= window.
func (h *VendorHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var statuses []db.ReservationStatus
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, db.ReservationStatus(strings.TrimSpace(s)))
		}
	}
	var from, to time.Time
	if q.Get("from") != "" || q.Get("to") != "" {
		var errFrom, errTo error
		from, errFrom = time.Parse(time.RFC3339, q.Get("from"))
		to, errTo = time.Parse(time.RFC3339, q.Get("to"))
		if errFrom != nil || errTo != nil || !to.After(from) {
			apperrors.WriteError(w, apperrors.ErrBadRequest("from and to must be RFC 3339 timestamps with to after from"))
			return
		}
	}
	list, err := h.Reservations.ListForLot(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"], statuses, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *VendorHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reservations.CheckIn(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *VendorHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reservations.CheckOut(r.Context(), auth.SubjectFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
