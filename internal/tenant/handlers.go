package tenant

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/common"
)

// Handler exposes the tenant profile HTTP surface.
type Handler struct {
	Store    *ProfileStore
	Validate *validator.Validate
}

// GetProfile returns the resolved tenant's profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	profile, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": profile})
}

// UpdateProfile replaces the editable profile fields.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var input ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(input); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
			return
		}
	}
	profile, err := h.Store.Update(r.Context(), id, input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": profile})
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_MISSING", "tenant not resolved", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "TENANT_INVALID", "tenant identifier invalid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrProfileNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "tenant profile not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
