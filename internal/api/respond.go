package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"parkspot/internal/entities"
	apperrors "parkspot/internal/errors"
	"parkspot/internal/logging"
	"parkspot/internal/repository"
	"parkspot/internal/service"
	"parkspot/internal/validation"
)

const maxBodyBytes = int64(1 << 20)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apperrors.WriteError(w, apperrors.ErrBadRequest("invalid request body"))
		return false
	}
	if err := validation.Struct(dst); err != nil {
		var reqErr *validation.RequestError
		if errors.As(err, &reqErr) {
			apperrors.WriteError(w, apperrors.ErrBadRequest("validation failed").WithDetails(reqErr.Fields))
			return false
		}
		apperrors.WriteError(w, apperrors.ErrBadRequest(err.Error()))
		return false
	}
	return true
}

// writeServiceError maps service and repository errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *service.UnavailableError
		conflict    *service.ConflictError
	)
	switch {
	case errors.As(err, &unavailable):
		apperrors.WriteError(w, unavailableError(unavailable.Result))
	case errors.As(err, &conflict):
		if conflict.Result.Type == entities.ConflictValidationError {
			apperrors.WriteError(w, apperrors.ErrUnavailable(conflict.Result.Message))
			return
		}
		apperrors.WriteError(w, apperrors.ErrConflict(conflict.Result.Message).WithDetails(conflict.Result))
	case errors.Is(err, repository.ErrNotFound):
		apperrors.WriteError(w, apperrors.ErrNotFound("resource not found"))
	case errors.Is(err, repository.ErrDuplicate):
		apperrors.WriteError(w, apperrors.ErrConflict("resource already exists"))
	case errors.Is(err, service.ErrForbidden):
		apperrors.WriteError(w, apperrors.ErrForbidden("access denied"))
	case errors.Is(err, service.ErrInvalidCredential):
		apperrors.WriteError(w, apperrors.ErrUnauthorized("invalid credentials"))
	case errors.Is(err, service.ErrInvalidRequest):
		apperrors.WriteError(w, apperrors.ErrBadRequest(err.Error()))
	case errors.Is(err, service.ErrInvalidTransition):
		apperrors.WriteError(w, apperrors.ErrConflict(err.Error()))
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		apperrors.WriteError(w, apperrors.ErrInternal())
	}
}

func unavailableError(res entities.AvailabilityResult) *apperrors.HTTPError {
	switch res.Reason {
	case entities.ReasonNotFound:
		return apperrors.ErrNotFound(res.Message)
	case entities.ReasonInvalid:
		return apperrors.ErrBadRequest(res.Message)
	case entities.ReasonError:
		return apperrors.ErrUnavailable(res.Message)
	case entities.ReasonInsufficientCapacity:
		return apperrors.ErrConflict(res.Message).WithDetails(res)
	default:
		return apperrors.ErrUnprocessable(res.Message).WithDetails(res)
	}
}
