package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the plan does not exist.
var ErrNotFound = errors.New("plan: not found")

// Plan is a subscription tier. MonthlyDocumentLimit of zero means unlimited.
type Plan struct {
	ID                   uuid.UUID `json:"id"`
	Slug                 string    `json:"slug"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	PriceCents           int64     `json:"price_cents"`
	MonthlyDocumentLimit int64     `json:"monthly_document_limit"`
	CreatedAt            time.Time `json:"created_at"`
}

const columns = `id, slug, name, description, price_cents, monthly_document_limit, created_at`

// Store reads the plan catalog from Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// List returns every plan ordered by price.
func (s *Store) List(ctx context.Context) ([]Plan, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+columns+` FROM plans ORDER BY price_cents ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns one plan by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+columns+` FROM plans WHERE id = $1`, id)
	return scan(row)
}

// GetBySlug returns one plan by slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Plan, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+columns+` FROM plans WHERE slug = $1`, slug)
	return scan(row)
}

// GetForTenant resolves the tenant's current plan.
func (s *Store) GetForTenant(ctx context.Context, tenantID uuid.UUID) (Plan, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT p.id, p.slug, p.name, p.description, p.price_cents, p.monthly_document_limit, p.created_at
		FROM plans p JOIN tenants t ON t.plan_id = p.id
		WHERE t.id = $1`, tenantID)
	return scan(row)
}

func scan(row pgx.Row) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.PriceCents, &p.MonthlyDocumentLimit, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrNotFound
	}
	return p, err
}
