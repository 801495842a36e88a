package document

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/billing"
	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/tenant"
)

// Renderer produces the downloadable artifact for a document.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// DeliveryEnqueuer schedules deferred render-and-email delivery.
type DeliveryEnqueuer interface {
	EnqueueDelivery(ctx context.Context, tenantID, documentID uuid.UUID) error
}

// Handler exposes the document HTTP surface.
type Handler struct {
	Svc      *Service
	Kind     Kind
	Renderer Renderer
	Delivery DeliveryEnqueuer
	Validate *validator.Validate
}

type documentPayload struct {
	Document
	Summary billing.Summary   `json:"summary"`
	Display map[string]string `json:"display"`
}

func (h *Handler) payload(doc Document) documentPayload {
	summary := doc.Summary()
	symbol := doc.Issuer.CurrencySymbol
	return documentPayload{
		Document: doc,
		Summary:  summary,
		Display: map[string]string{
			"sub_total":       billing.FormatMoney(summary.SubTotal, symbol),
			"discount_amount": billing.FormatMoney(summary.DiscountAmount, symbol),
			"tax_amount":      billing.FormatMoney(summary.TaxAmount, symbol),
			"grand_total":     billing.FormatMoney(summary.GrandTotal, symbol),
			"amount_paid":     billing.FormatMoney(summary.AmountPaid, symbol),
			"balance_due":     billing.FormatMoney(summary.BalanceDue, symbol),
		},
	}
}

// Create finalizes a draft into a document of the handler's kind.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}
	var input DraftInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(input); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validationDetails(err))
			return
		}
	}
	doc, err := h.Svc.Create(r.Context(), tenantID, h.Kind, input)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.payload(doc)})
}

// Preview computes the financial summary for a draft without persisting it.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var input DraftInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Svc.Preview(input)})
}

// List returns a page of tenant documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		if !st.Valid() {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown status filter", nil)
			return
		}
		status = &st
	}
	docs, total, err := h.Svc.List(r.Context(), tenantID, h.Kind, status, page, perPage)
	if err != nil {
		respondError(w, err)
		return
	}
	payloads := make([]documentPayload, 0, len(docs))
	for _, doc := range docs {
		payloads = append(payloads, h.payload(doc))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       payloads,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get returns a single tenant document.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, docID, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}
	doc, err := h.Svc.Get(r.Context(), tenantID, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.payload(doc)})
}

// PatchStatus applies a lifecycle transition.
func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, docID, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", nil)
		return
	}
	doc, err := h.Svc.Transition(r.Context(), tenantID, docID, body.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.payload(doc)})
}

// PDF renders the document synchronously and streams it for download.
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	tenantID, docID, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}
	doc, err := h.Svc.Get(r.Context(), tenantID, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	artifact, err := h.Renderer.Render(r.Context(), doc)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		var invalid *InvalidDocumentError
		if errors.As(err, &invalid) {
			common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_DOCUMENT", invalid.Reason, nil)
			return
		}
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Number+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact)))
	_, _ = w.Write(artifact)
}

// Send queues the document for rendering and email delivery to the customer.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	tenantID, docID, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}
	doc, err := h.Svc.Get(r.Context(), tenantID, docID)
	if err != nil {
		respondError(w, err)
		return
	}
	if doc.Customer.Email == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "customer has no email address", nil)
		return
	}
	if err := h.Delivery.EnqueueDelivery(r.Context(), tenantID, docID); err != nil {
		respondError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"status": "queued"}})
}

func tenantFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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

func scopeFromRequest(w http.ResponseWriter, r *http.Request) (tenantID, docID uuid.UUID, ok bool) {
	tenantID, ok = tenantFromRequest(w, r)
	if !ok {
		return
	}
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid document id", nil)
		return tenantID, uuid.Nil, false
	}
	return tenantID, docID, true
}

func respondError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return fields
}
