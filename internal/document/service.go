package document

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/billing"
	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/obs"
)

// Storage abstracts document persistence for the service.
type Storage interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Document, error)
	List(ctx context.Context, tenantID uuid.UUID, kind Kind, status *Status, limit, offset int32) ([]Document, int64, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status) error
	CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
}

// IssuerSource resolves the tenant identity and bank details snapshotted onto
// new documents.
type IssuerSource interface {
	IssuerProfile(ctx context.Context, tenantID uuid.UUID) (Issuer, BankDetails, error)
}

// QuotaChecker enforces the tenant plan's monthly document allowance.
type QuotaChecker interface {
	MonthlyDocumentLimit(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// DraftInput is the payload for creating or previewing a document. Numeric
// fields arrive through billing.Numeric so malformed client values degrade to
// zero instead of failing the request.
type DraftInput struct {
	ExternalRef        string             `json:"external_ref"`
	Customer           Party              `json:"customer" validate:"required"`
	Items              []billing.LineItem `json:"items"`
	DiscountPercentage billing.Numeric    `json:"discount_percentage"`
	TaxPercentage      billing.Numeric    `json:"tax_percentage"`
	AmountPaid         billing.Numeric    `json:"amount_paid"`
	Notes              string             `json:"notes"`
	DueAt              *time.Time         `json:"due_at"`
}

// Service owns document creation, lookup, and lifecycle transitions.
type Service struct {
	Store   Storage
	Issuers IssuerSource
	Quota   QuotaChecker
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Preview computes the live financial summary for a draft without persisting
// anything. Safe to call on every edit.
func (s *Service) Preview(input DraftInput) billing.Summary {
	return billing.Compute(
		input.Items,
		input.DiscountPercentage.Float(),
		input.TaxPercentage.Float(),
		input.AmountPaid.Float(),
	)
}

// Create finalizes a draft into an immutable document. Invoices are born
// issued; receipts are born paid. The issuing identity is snapshotted from
// the tenant profile at this moment.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, kind Kind, input DraftInput) (Document, error) {
	if strings.TrimSpace(input.Customer.Name) == "" {
		return Document{}, common.NewAppError("VALIDATION_ERROR", "customer.name is required", http.StatusBadRequest, nil)
	}

	if s.Quota != nil {
		limit, err := s.Quota.MonthlyDocumentLimit(ctx, tenantID)
		if err != nil {
			return Document{}, err
		}
		if limit > 0 {
			monthStart := startOfMonth(s.now())
			used, err := s.Store.CountCreatedSince(ctx, tenantID, monthStart)
			if err != nil {
				return Document{}, err
			}
			if used >= limit {
				if obs.QuotaRejectedTotal != nil {
					obs.QuotaRejectedTotal.Inc()
				}
				return Document{}, common.NewAppError("QUOTA_EXCEEDED", "monthly document quota reached for current plan", http.StatusForbidden, nil)
			}
		}
	}

	issuer, bank, err := s.Issuers.IssuerProfile(ctx, tenantID)
	if err != nil {
		return Document{}, err
	}

	now := s.now()
	status := StatusIssued
	if kind == KindReceipt {
		status = StatusPaid
	}
	doc := Document{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Kind:               kind,
		ExternalRef:        strings.TrimSpace(input.ExternalRef),
		Customer:           input.Customer,
		Issuer:             issuer,
		Bank:               bank,
		Items:              input.Items,
		DiscountPercentage: input.DiscountPercentage.Float(),
		TaxPercentage:      input.TaxPercentage.Float(),
		AmountPaid:         input.AmountPaid.Float(),
		Notes:              input.Notes,
		Status:             status,
		IssuedAt:           now,
		DueAt:              input.DueAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := doc.Validate(); err != nil {
		var invalid *InvalidDocumentError
		if errors.As(err, &invalid) {
			return Document{}, common.NewAppError("INVALID_DOCUMENT", invalid.Reason, http.StatusUnprocessableEntity, err)
		}
		return Document{}, err
	}
	created, err := s.Store.Create(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	if obs.DocumentCreatedTotal != nil {
		obs.DocumentCreatedTotal.WithLabelValues(string(kind)).Inc()
	}
	return created, nil
}

// Get returns a tenant-scoped document.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Document, error) {
	doc, err := s.Store.Get(ctx, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		return Document{}, common.NewAppError("NOT_FOUND", "document not found", http.StatusNotFound, err)
	}
	return doc, err
}

// List returns a page of tenant documents.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, kind Kind, status *Status, page, perPage int) ([]Document, int64, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	return s.Store.List(ctx, tenantID, kind, status, int32(perPage), int32((page-1)*perPage))
}

// Transition moves the document to the target status when the lifecycle
// allows it.
func (s *Service) Transition(ctx context.Context, tenantID, id uuid.UUID, to Status) (Document, error) {
	if !to.Valid() {
		return Document{}, common.NewAppError("VALIDATION_ERROR", "unknown status", http.StatusBadRequest, nil)
	}
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.Status.CanTransition(to) {
		return Document{}, common.NewAppError("INVALID_TRANSITION", "status transition not allowed", http.StatusConflict, nil)
	}
	if err := s.Store.UpdateStatus(ctx, tenantID, id, doc.Status, to); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, common.NewAppError("INVALID_TRANSITION", "status changed concurrently", http.StatusConflict, err)
		}
		return Document{}, err
	}
	doc.Status = to
	return doc, nil
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
