package plan

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Quota resolves the tenant's monthly document allowance from its plan.
// Implements the quota check consulted at document creation.
type Quota struct {
	Plans *Store
}

// MonthlyDocumentLimit returns the cap for the tenant's current plan. Tenants
// without a resolvable plan are treated as unlimited rather than blocked.
func (q Quota) MonthlyDocumentLimit(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	p, err := q.Plans.GetForTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return p.MonthlyDocumentLimit, nil
}
