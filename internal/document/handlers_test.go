package document

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/tenant"
)

type stubRenderer struct {
	out []byte
	err error
}

func (s stubRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	return s.out, s.err
}

type stubDelivery struct {
	calls int
}

func (s *stubDelivery) EnqueueDelivery(ctx context.Context, tenantID, documentID uuid.UUID) error {
	s.calls++
	return nil
}

func testHandler(store *fakeStore) (*Handler, uuid.UUID) {
	tenantID := uuid.New()
	return &Handler{
		Svc:      testService(store, 0),
		Kind:     KindInvoice,
		Renderer: stubRenderer{out: []byte("%PDF-1.4 fake")},
		Delivery: &stubDelivery{},
		Validate: validator.New(),
	}, tenantID
}

func doRequest(h http.HandlerFunc, method, target, body string, tenantID uuid.UUID, params map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := tenant.WithTenant(req.Context(), tenantID.String())
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func TestHandlerPreview(t *testing.T) {
	h, tenantID := testHandler(newFakeStore())

	body := `{"customer":{"name":"PT Maju Jaya"},"items":[{"description":"design","quantity":"2","unit_price":100}],"discount_percentage":10,"tax_percentage":5}`
	rec := doRequest(h.Preview, http.MethodPost, "/api/v1/invoices/preview", body, tenantID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			SubTotal   float64 `json:"sub_total"`
			GrandTotal float64 `json:"grand_total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.SubTotal != 200 || resp.Data.GrandTotal != 189 {
		t.Fatalf("unexpected summary: %+v", resp.Data)
	}
}

func TestHandlerCreate(t *testing.T) {
	store := newFakeStore()
	h, tenantID := testHandler(store)

	body := `{"customer":{"name":"PT Maju Jaya"},"items":[{"description":"design","quantity":2,"unit_price":100}]}`
	rec := doRequest(h.Create, http.MethodPost, "/api/v1/invoices", body, tenantID, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d documents, want 1", len(store.created))
	}

	var resp struct {
		Data struct {
			Number  string            `json:"number"`
			Status  string            `json:"status"`
			Display map[string]string `json:"display"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Number != "INV-000001" || resp.Data.Status != "issued" {
		t.Fatalf("unexpected payload: %+v", resp.Data)
	}
	if resp.Data.Display["grand_total"] == "" {
		t.Fatal("display block missing")
	}
}

func TestHandlerCreateRejectsBadJSON(t *testing.T) {
	h, tenantID := testHandler(newFakeStore())
	rec := doRequest(h.Create, http.MethodPost, "/api/v1/invoices", "{not json", tenantID, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlerCreateRequiresTenant(t *testing.T) {
	h, _ := testHandler(newFakeStore())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "TENANT_MISSING") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHandlerPDFStreamsArtifact(t *testing.T) {
	store := newFakeStore()
	h, tenantID := testHandler(store)

	doc, err := h.Svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(h.PDF, http.MethodGet, "/api/v1/invoices/"+doc.ID.String()+"/pdf", "", tenantID, map[string]string{"id": doc.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), doc.Number) {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestHandlerPDFInvalidDocument(t *testing.T) {
	store := newFakeStore()
	h, tenantID := testHandler(store)
	h.Renderer = stubRenderer{err: &InvalidDocumentError{Reason: "issuer name is required"}}

	doc, err := h.Svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(h.PDF, http.MethodGet, "/api/v1/invoices/"+doc.ID.String()+"/pdf", "", tenantID, map[string]string{"id": doc.ID.String()})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSendRequiresCustomerEmail(t *testing.T) {
	store := newFakeStore()
	h, tenantID := testHandler(store)

	doc, err := h.Svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(h.Send, http.MethodPost, "/api/v1/invoices/"+doc.ID.String()+"/send", "", tenantID, map[string]string{"id": doc.ID.String()})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerSendQueuesDelivery(t *testing.T) {
	store := newFakeStore()
	h, tenantID := testHandler(store)
	delivery := &stubDelivery{}
	h.Delivery = delivery

	input := draftInput()
	input.Customer.Email = "billing@majujaya.example"
	doc, err := h.Svc.Create(context.Background(), tenantID, KindInvoice, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(h.Send, http.MethodPost, "/api/v1/invoices/"+doc.ID.String()+"/send", "", tenantID, map[string]string{"id": doc.ID.String()})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if delivery.calls != 1 {
		t.Fatalf("enqueued %d times, want 1", delivery.calls)
	}
}

func TestHandlerListRejectsUnknownStatus(t *testing.T) {
	h, tenantID := testHandler(newFakeStore())
	rec := doRequest(h.List, http.MethodGet, "/api/v1/invoices?status=bogus", "", tenantID, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
