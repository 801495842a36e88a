package document

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/tenant"
)

// ProfileIssuerSource adapts the tenant profile store into the issuer
// snapshot consumed at document creation.
type ProfileIssuerSource struct {
	Profiles *tenant.ProfileStore
}

// IssuerProfile implements IssuerSource.
func (s ProfileIssuerSource) IssuerProfile(ctx context.Context, tenantID uuid.UUID) (Issuer, BankDetails, error) {
	profile, err := s.Profiles.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			return Issuer{}, BankDetails{}, common.NewAppError("TENANT_MISSING", "tenant profile not found", http.StatusNotFound, err)
		}
		return Issuer{}, BankDetails{}, err
	}
	issuer := Issuer{
		Name:           profile.Name,
		Email:          profile.Email,
		Phone:          profile.Phone,
		LogoURL:        profile.LogoURL,
		SignatureURL:   profile.SignatureURL,
		CurrencySymbol: profile.CurrencySymbol,
	}
	bank := BankDetails{
		BankName:      profile.BankName,
		AccountName:   profile.BankAccountName,
		AccountNumber: profile.BankAccountNumber,
	}
	return issuer, bank, nil
}
