package document

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/billing"
)

// Kind distinguishes the two document flavours sharing this model.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindReceipt Kind = "receipt"
)

// Status is the lifecycle state of a finalized document.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

// CanTransition reports whether the status may move to the target state.
// Documents are immutable after creation except for these transitions.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDraft:
		return to == StatusIssued
	case StatusIssued:
		return to == StatusPaid || to == StatusVoid
	case StatusPaid:
		return to == StatusVoid
	default:
		return false
	}
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// Party is the counterparty block printed on the document.
type Party struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Issuer is the issuing tenant identity snapshotted onto the document at
// creation time, so later profile edits do not rewrite archived documents.
type Issuer struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	SignatureURL   string `json:"signature_url,omitempty"`
	CurrencySymbol string `json:"currency_symbol"`
}

// BankDetails is the payment remittance block.
type BankDetails struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// Document is a finalized invoice or receipt. Identity, parties, and items
// are fixed at creation; only Status moves afterwards.
type Document struct {
	ID                 uuid.UUID          `json:"id"`
	TenantID           uuid.UUID          `json:"tenant_id"`
	Kind               Kind               `json:"kind"`
	Number             string             `json:"number"`
	ExternalRef        string             `json:"external_ref,omitempty"`
	Customer           Party              `json:"customer"`
	Issuer             Issuer             `json:"issuer"`
	Bank               BankDetails        `json:"bank"`
	Items              []billing.LineItem `json:"items"`
	DiscountPercentage float64            `json:"discount_percentage"`
	TaxPercentage      float64            `json:"tax_percentage"`
	AmountPaid         float64            `json:"amount_paid"`
	Notes              string             `json:"notes,omitempty"`
	Status             Status             `json:"status"`
	IssuedAt           time.Time          `json:"issued_at"`
	DueAt              *time.Time         `json:"due_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Summary recomputes the financial projection from the stored inputs. Totals
// are never persisted, so this is always consistent with the items.
func (d Document) Summary() billing.Summary {
	return billing.Compute(d.Items, d.DiscountPercentage, d.TaxPercentage, d.AmountPaid)
}

// ErrInvalidDocument is the sentinel all structural validation failures wrap.
var ErrInvalidDocument = errors.New("invalid document")

// InvalidDocumentError reports a document that cannot be rendered or
// persisted. The caller must not retry with the same input.
type InvalidDocumentError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document: %s", e.Reason)
}

// Unwrap lets errors.Is match the sentinel.
func (e *InvalidDocumentError) Unwrap() error {
	return ErrInvalidDocument
}

// Validate checks the structural requirements a document must satisfy before
// rendering: an issuing identity and a counterparty name. Optional assets
// (logo, signature) are deliberately not validated here; their absence is a
// render-time degradation, not an error.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Issuer.Name) == "" {
		return &InvalidDocumentError{Reason: "issuer name is required"}
	}
	if strings.TrimSpace(d.Customer.Name) == "" {
		return &InvalidDocumentError{Reason: "customer name is required"}
	}
	if d.Kind != KindInvoice && d.Kind != KindReceipt {
		return &InvalidDocumentError{Reason: "unknown document kind"}
	}
	return nil
}

// Title returns the printed document heading.
func (d Document) Title() string {
	if d.Kind == KindReceipt {
		return "RECEIPT"
	}
	return "INVOICE"
}
