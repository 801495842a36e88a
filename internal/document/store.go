package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the document does not exist within the tenant scope.
var ErrNotFound = errors.New("document not found")

// Store persists documents in Postgres. Party, issuer, bank, and item blocks
// are stored as JSONB snapshots; computed totals are never written.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore constructs a document store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const insertDocumentSQL = `
INSERT INTO documents (
	id, tenant_id, kind, number, external_ref,
	customer, issuer, bank, items,
	discount_percentage, tax_percentage, amount_paid,
	notes, status, issued_at, due_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

const selectDocumentSQL = `
SELECT id, tenant_id, kind, number, external_ref,
	customer, issuer, bank, items,
	discount_percentage, tax_percentage, amount_paid,
	notes, status, issued_at, due_at, created_at, updated_at
FROM documents`

// Create assigns the next per-tenant number for the document kind and inserts
// the document in a single transaction.
func (s *Store) Create(ctx context.Context, doc Document) (Document, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Document{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO document_numbers (tenant_id, kind, next)
		VALUES ($1, $2, 2)
		ON CONFLICT (tenant_id, kind)
		DO UPDATE SET next = document_numbers.next + 1
		RETURNING next - 1`,
		doc.TenantID, string(doc.Kind),
	).Scan(&seq)
	if err != nil {
		return Document{}, fmt.Errorf("assign document number: %w", err)
	}
	doc.Number = FormatNumber(doc.Kind, seq)

	customer, issuer, bank, items, err := marshalBlocks(doc)
	if err != nil {
		return Document{}, err
	}
	_, err = tx.Exec(ctx, insertDocumentSQL,
		doc.ID, doc.TenantID, string(doc.Kind), doc.Number, doc.ExternalRef,
		customer, issuer, bank, items,
		doc.DiscountPercentage, doc.TaxPercentage, doc.AmountPaid,
		doc.Notes, string(doc.Status), doc.IssuedAt, doc.DueAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get returns a tenant-scoped document by id.
func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (Document, error) {
	row := s.Pool.QueryRow(ctx, selectDocumentSQL+` WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// List returns tenant documents of the given kind, newest first, optionally
// narrowed by status, along with the total matching count.
func (s *Store) List(ctx context.Context, tenantID uuid.UUID, kind Kind, status *Status, limit, offset int32) ([]Document, int64, error) {
	var statusFilter *string
	if status != nil {
		v := string(*status)
		statusFilter = &v
	}
	rows, err := s.Pool.Query(ctx, selectDocumentSQL+`
		WHERE tenant_id = $1 AND kind = $2 AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		tenantID, string(kind), statusFilter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := make([]Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	err = s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM documents
		WHERE tenant_id = $1 AND kind = $2 AND ($3::text IS NULL OR status = $3)`,
		tenantID, string(kind), statusFilter).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// UpdateStatus applies a guarded status transition. The expected current
// status is part of the predicate so concurrent transitions cannot race.
func (s *Store) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE documents SET status = $1, updated_at = now()
		WHERE tenant_id = $2 AND id = $3 AND status = $4`,
		string(to), tenantID, id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCreatedSince counts tenant documents created at or after the instant,
// used for plan quota enforcement.
func (s *Store) CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM documents WHERE tenant_id = $1 AND created_at >= $2`,
		tenantID, since).Scan(&total)
	return total, err
}

// FormatNumber renders the printed per-tenant document number.
func FormatNumber(kind Kind, seq int64) string {
	prefix := "INV"
	if kind == KindReceipt {
		prefix = "RCT"
	}
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

func marshalBlocks(doc Document) (customer, issuer, bank, items []byte, err error) {
	if customer, err = json.Marshal(doc.Customer); err != nil {
		return
	}
	if issuer, err = json.Marshal(doc.Issuer); err != nil {
		return
	}
	if bank, err = json.Marshal(doc.Bank); err != nil {
		return
	}
	items, err = json.Marshal(doc.Items)
	return
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc                          Document
		kind, status                 string
		customer, issuer, bank, itms []byte
	)
	err := row.Scan(
		&doc.ID, &doc.TenantID, &kind, &doc.Number, &doc.ExternalRef,
		&customer, &issuer, &bank, &itms,
		&doc.DiscountPercentage, &doc.TaxPercentage, &doc.AmountPaid,
		&doc.Notes, &status, &doc.IssuedAt, &doc.DueAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	doc.Status = Status(status)
	if err := json.Unmarshal(customer, &doc.Customer); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(issuer, &doc.Issuer); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(bank, &doc.Bank); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(itms, &doc.Items); err != nil {
		return Document{}, err
	}
	return doc, nil
}
