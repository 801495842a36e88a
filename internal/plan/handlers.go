package plan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/tenant"
)

// Handler exposes the plan catalog and tenant subscription surface.
type Handler struct {
	Plans    *Store
	Profiles *tenant.ProfileStore
}

type upgradeRequest struct {
	Slug string `json:"slug"`
}

// List handles GET /api/v1/plans.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Plans.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": plans})
}

// Subscription handles GET /api/v1/subscription.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	current, err := h.Plans.GetForTenant(r.Context(), tenantID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": current})
}

// Upgrade handles POST /api/v1/subscription/upgrade. Moving to a cheaper plan
// goes through the same path; existing documents are never affected.
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	slug := strings.TrimSpace(strings.ToLower(req.Slug))
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "slug is required", nil)
		return
	}
	target, err := h.Plans.GetBySlug(r.Context(), slug)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Profiles.SetPlan(r.Context(), tenantID, target.ID); err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "tenant not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": target})
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := tenant.FromContext(r.Context())
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
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "plan not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
