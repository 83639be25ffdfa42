package api

import (
	"net/http"

	"parkspot/internal/entities"
	"parkspot/internal/service"
)

type VendorAuthHandler struct {
	service *service.VendorAuthService
}

func NewVendorAuthHandler(svc *service.VendorAuthService) *VendorAuthHandler {
	return &VendorAuthHandler{service: svc}
}

func (h *VendorAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entities.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.LoginResponse{Token: token})
}

func (h *VendorAuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entities.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.LoginResponse{Token: token})
}
