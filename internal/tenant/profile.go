package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileNotFound indicates the tenant has no stored profile.
var ErrProfileNotFound = errors.New("tenant profile not found")

// Profile is the issuing identity a tenant stamps onto its documents,
// together with the remittance details printed in the payment block.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	LogoURL           string    `json:"logo_url,omitempty"`
	SignatureURL      string    `json:"signature_url,omitempty"`
	CurrencySymbol    string    `json:"currency_symbol"`
	BankName          string    `json:"bank_name,omitempty"`
	BankAccountName   string    `json:"bank_account_name,omitempty"`
	BankAccountNumber string    `json:"bank_account_number,omitempty"`
	PlanID            uuid.UUID `json:"plan_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileInput carries the editable subset of the profile.
type ProfileInput struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"omitempty,email"`
	Phone             string `json:"phone"`
	LogoURL           string `json:"logo_url" validate:"omitempty,url"`
	SignatureURL      string `json:"signature_url" validate:"omitempty,url"`
	CurrencySymbol    string `json:"currency_symbol"`
	BankName          string `json:"bank_name"`
	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
}

const profileColumns = `
	id, slug, name, email, phone, logo_url, signature_url, currency_symbol,
	bank_name, bank_account_name, bank_account_number, plan_id, created_at, updated_at`

// ProfileStore persists tenant profiles in Postgres.
type ProfileStore struct {
	Pool *pgxpool.Pool
}

// Get returns the profile for the tenant id.
func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := s.Pool.QueryRow(ctx, `SELECT`+profileColumns+` FROM tenants WHERE id = $1`, id)
	return scanProfile(row)
}

// GetBySlug returns the profile for the tenant slug.
func (s *ProfileStore) GetBySlug(ctx context.Context, slug string) (Profile, error) {
	row := s.Pool.QueryRow(ctx, `SELECT`+profileColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanProfile(row)
}

// Update replaces the editable profile fields and returns the new state.
func (s *ProfileStore) Update(ctx context.Context, id uuid.UUID, input ProfileInput) (Profile, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE tenants SET
			name = $2, email = $3, phone = $4, logo_url = $5, signature_url = $6,
			currency_symbol = $7, bank_name = $8, bank_account_name = $9,
			bank_account_number = $10, updated_at = now()
		WHERE id = $1
		RETURNING`+profileColumns,
		id, input.Name, input.Email, input.Phone, input.LogoURL, input.SignatureURL,
		input.CurrencySymbol, input.BankName, input.BankAccountName, input.BankAccountNumber)
	return scanProfile(row)
}

// SetPlan moves the tenant onto the given plan.
func (s *ProfileStore) SetPlan(ctx context.Context, id, planID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tenants SET plan_id = $2, updated_at = now() WHERE id = $1`, id, planID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.Email, &p.Phone, &p.LogoURL, &p.SignatureURL,
		&p.CurrencySymbol, &p.BankName, &p.BankAccountName, &p.BankAccountNumber,
		&p.PlanID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return p, err
}
