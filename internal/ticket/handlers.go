package ticket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/tenant"
)

// Handler exposes the support ticket HTTP surface. The admin methods are
// expected to sit behind role middleware.
type Handler struct {
	Store *Store
}

type createRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type messageRequest struct {
	Body string `json:"body"`
}

// Create handles POST /api/v1/tickets.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	subject := strings.TrimSpace(req.Subject)
	body := strings.TrimSpace(req.Body)
	if subject == "" || body == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "subject and body are required", nil)
		return
	}
	t, err := h.Store.Create(r.Context(), tenantID, userID, subject, body)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": t})
}

// List handles GET /api/v1/tickets (requester's own tickets).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	tickets, err := h.Store.ListByUser(r.Context(), tenantID, userID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tickets})
}

// Get handles GET /api/v1/tickets/{id}, returning the ticket with its thread.
// Requesters only see their own tickets; admins see any in the tenant.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.Store.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	session, _ := common.SessionFrom(r.Context())
	if t.UserID != userID && !session.HasRole("admin") {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
		return
	}
	messages, err := h.Store.Messages(r.Context(), t.ID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"ticket": t, "messages": messages}})
}

// AddMessage handles POST /api/v1/tickets/{id}/messages.
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	h.appendMessage(w, r, false)
}

// AdminList handles GET /api/v1/admin/tickets.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	tickets, err := h.Store.ListAll(r.Context(), tenantID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tickets})
}

// AdminReply handles POST /api/v1/admin/tickets/{id}/reply.
func (h *Handler) AdminReply(w http.ResponseWriter, r *http.Request) {
	h.appendMessage(w, r, true)
}

// AdminClose handles POST /api/v1/admin/tickets/{id}/close.
func (h *Handler) AdminClose(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.Close(r.Context(), tenantID, id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request, fromAdmin bool) {
	tenantID, userID, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
		return
	}

	t, err := h.Store.Get(r.Context(), tenantID, id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if !fromAdmin && t.UserID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
		return
	}
	if t.Status == StatusClosed && !fromAdmin {
		common.JSONError(w, http.StatusConflict, "TICKET_CLOSED", "ticket is closed", nil)
		return
	}

	m, err := h.Store.AppendMessage(r.Context(), t.ID, userID, fromAdmin, body)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": m})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	raw, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_MISSING", "tenant not resolved", nil)
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "TENANT_INVALID", "tenant identifier invalid", nil)
		return uuid.Nil, uuid.Nil, false
	}
	rawUser, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, userID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid ticket id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "ticket not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
