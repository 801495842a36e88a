package document

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/billing"
	"github.com/noah-isme/backend-faktur/internal/common"
)

type fakeStore struct {
	created      []Document
	docs         map[uuid.UUID]Document
	createdSince int64
	statusErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[uuid.UUID]Document{}}
}

func (f *fakeStore) Create(ctx context.Context, doc Document) (Document, error) {
	doc.Number = "INV-000001"
	f.created = append(f.created, doc)
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeStore) Get(ctx context.Context, tenantID, id uuid.UUID) (Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) List(ctx context.Context, tenantID uuid.UUID, kind Kind, status *Status, limit, offset int32) ([]Document, int64, error) {
	return nil, 0, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	doc := f.docs[id]
	doc.Status = to
	f.docs[id] = doc
	return nil
}

func (f *fakeStore) CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	return f.createdSince, nil
}

type fakeIssuers struct {
	issuer Issuer
	bank   BankDetails
	err    error
}

func (f fakeIssuers) IssuerProfile(ctx context.Context, tenantID uuid.UUID) (Issuer, BankDetails, error) {
	return f.issuer, f.bank, f.err
}

type fakeQuota struct {
	limit int64
}

func (f fakeQuota) MonthlyDocumentLimit(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return f.limit, nil
}

func testService(store *fakeStore, limit int64) *Service {
	return &Service{
		Store:   store,
		Issuers: fakeIssuers{issuer: Issuer{Name: "Studio Faktur", CurrencySymbol: "$"}, bank: BankDetails{BankName: "BCA"}},
		Quota:   fakeQuota{limit: limit},
		Now: func() time.Time {
			return time.Date(2024, time.March, 18, 9, 0, 0, 0, time.UTC)
		},
	}
}

func draftInput() DraftInput {
	return DraftInput{
		Customer: Party{Name: "PT Maju Jaya"},
		Items: []billing.LineItem{
			{Description: "design", Quantity: 2, UnitPrice: 100},
		},
		DiscountPercentage: 10,
		TaxPercentage:      5,
	}
}

func appErrCode(t *testing.T, err error) *common.AppError {
	t.Helper()
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want AppError", err)
	}
	return appErr
}

func TestCreateSnapshotsIssuerAndComputes(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, 0)

	doc, err := svc.Create(context.Background(), uuid.New(), KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.Status != StatusIssued {
		t.Fatalf("status = %s, want issued", doc.Status)
	}
	if doc.Issuer.Name != "Studio Faktur" || doc.Bank.BankName != "BCA" {
		t.Fatalf("issuer snapshot missing: %+v", doc.Issuer)
	}
	if doc.Number != "INV-000001" {
		t.Fatalf("number = %q", doc.Number)
	}

	s := doc.Summary()
	if s.SubTotal != 200 || s.DiscountAmount != 20 || s.TaxAmount != 9 || s.GrandTotal != 189 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestCreateReceiptBornPaid(t *testing.T) {
	svc := testService(newFakeStore(), 0)
	doc, err := svc.Create(context.Background(), uuid.New(), KindReceipt, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.Status != StatusPaid {
		t.Fatalf("status = %s, want paid", doc.Status)
	}
}

func TestCreateQuotaExceeded(t *testing.T) {
	store := newFakeStore()
	store.createdSince = 5
	svc := testService(store, 5)

	_, err := svc.Create(context.Background(), uuid.New(), KindInvoice, draftInput())
	appErr := appErrCode(t, err)
	if appErr.Code != "QUOTA_EXCEEDED" || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("got %s/%d", appErr.Code, appErr.HTTPStatus)
	}
	if len(store.created) != 0 {
		t.Fatal("document persisted despite quota rejection")
	}
}

func TestCreateZeroLimitMeansUnlimited(t *testing.T) {
	store := newFakeStore()
	store.createdSince = 10000
	svc := testService(store, 0)

	if _, err := svc.Create(context.Background(), uuid.New(), KindInvoice, draftInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestCreateRequiresCustomerName(t *testing.T) {
	svc := testService(newFakeStore(), 0)
	input := draftInput()
	input.Customer.Name = "  "

	_, err := svc.Create(context.Background(), uuid.New(), KindInvoice, input)
	appErr := appErrCode(t, err)
	if appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s", appErr.Code)
	}
}

func TestCreateInvalidIssuerProfile(t *testing.T) {
	svc := testService(newFakeStore(), 0)
	svc.Issuers = fakeIssuers{issuer: Issuer{Name: ""}}

	_, err := svc.Create(context.Background(), uuid.New(), KindInvoice, draftInput())
	appErr := appErrCode(t, err)
	if appErr.Code != "INVALID_DOCUMENT" || appErr.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("got %s/%d", appErr.Code, appErr.HTTPStatus)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, 0)

	s := svc.Preview(draftInput())
	if s.GrandTotal != 189 {
		t.Fatalf("grand total = %v, want 189", s.GrandTotal)
	}
	if len(store.created) != 0 {
		t.Fatal("preview persisted a document")
	}
}

func TestTransitionLifecycle(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, 0)
	tenantID := uuid.New()

	doc, err := svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.Transition(context.Background(), tenantID, doc.ID, StatusPaid)
	if err != nil {
		t.Fatalf("issued -> paid: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Fatalf("status = %s", paid.Status)
	}

	if _, err := svc.Transition(context.Background(), tenantID, doc.ID, StatusIssued); err == nil {
		t.Fatal("paid -> issued should be rejected")
	}

	if _, err := svc.Transition(context.Background(), tenantID, doc.ID, StatusVoid); err != nil {
		t.Fatalf("paid -> void: %v", err)
	}
}

func TestTransitionConcurrentChange(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, 0)
	tenantID := uuid.New()

	doc, err := svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.statusErr = ErrNotFound

	_, err = svc.Transition(context.Background(), tenantID, doc.ID, StatusPaid)
	appErr := appErrCode(t, err)
	if appErr.Code != "INVALID_TRANSITION" || appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("got %s/%d", appErr.Code, appErr.HTTPStatus)
	}
}

func TestGetScopedToTenant(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, 0)
	tenantID := uuid.New()

	doc, err := svc.Create(context.Background(), tenantID, KindInvoice, draftInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), doc.ID)
	appErr := appErrCode(t, err)
	if appErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", appErr.HTTPStatus)
	}
}
