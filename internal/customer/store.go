package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the customer does not exist inside the tenant.
var ErrNotFound = errors.New("customer: not found")

// Customer is a tenant-scoped directory entry reusable across documents.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries the editable customer fields.
type Input struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

const columns = `id, tenant_id, name, email, phone, address, created_at, updated_at`

// Store persists customers in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Create inserts a customer. A duplicate email inside the tenant surfaces as
// a pgconn unique violation for the caller to classify.
func (s *Store) Create(ctx context.Context, tenantID uuid.UUID, input Input) (Customer, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO customers (id, tenant_id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+columns,
		uuid.New(), tenantID, strings.TrimSpace(input.Name), normalizeEmail(input.Email), input.Phone, input.Address)
	return scan(row)
}

// Get returns one customer scoped to the tenant.
func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (Customer, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scan(row)
}

// List returns a page of the tenant's customers plus the total count.
// An optional search term matches name or email.
func (s *Store) List(ctx context.Context, tenantID uuid.UUID, search string, limit, offset int32) ([]Customer, int64, error) {
	search = strings.TrimSpace(search)
	pattern := "%" + search + "%"

	rows, err := s.Pool.Query(ctx, `
		SELECT `+columns+`
		FROM customers
		WHERE tenant_id = $1 AND ($2 = '' OR name ILIKE $3 OR email ILIKE $3)
		ORDER BY name ASC
		LIMIT $4 OFFSET $5`,
		tenantID, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Customer, 0, limit)
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	err = s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM customers
		WHERE tenant_id = $1 AND ($2 = '' OR name ILIKE $3 OR email ILIKE $3)`,
		tenantID, search, pattern).Scan(&total)
	return out, total, err
}

// Update replaces the editable fields and returns the new state.
func (s *Store) Update(ctx context.Context, tenantID, id uuid.UUID, input Input) (Customer, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE customers SET name = $3, email = $4, phone = $5, address = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+columns,
		tenantID, id, strings.TrimSpace(input.Name), normalizeEmail(input.Email), input.Phone, input.Address)
	return scan(row)
}

// Delete removes the customer.
func (s *Store) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}
