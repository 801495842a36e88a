package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the ticket does not exist inside the tenant.
var ErrNotFound = errors.New("ticket: not found")

// Status is the support ticket lifecycle state.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered"
	StatusClosed   Status = "closed"
)

// Ticket is a tenant-scoped support thread opened by a user.
type Ticket struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	Subject   string    `json:"subject"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one entry in a ticket thread. FromAdmin distinguishes staff
// replies from the requester's own messages.
type Message struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"-"`
	AuthorID  uuid.UUID `json:"author_id"`
	FromAdmin bool      `json:"from_admin"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

const ticketColumns = `id, tenant_id, user_id, subject, status, created_at, updated_at`

// Store persists support tickets and their messages in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// Create opens a ticket with its first message in one transaction.
func (s *Store) Create(ctx context.Context, tenantID, userID uuid.UUID, subject, body string) (Ticket, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Ticket{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (id, tenant_id, user_id, subject, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+ticketColumns,
		uuid.New(), tenantID, userID, subject, StatusOpen)
	t, err := scanTicket(row)
	if err != nil {
		return Ticket{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, author_id, from_admin, body)
		VALUES ($1, $2, $3, false, $4)`,
		uuid.New(), t.ID, userID, body)
	if err != nil {
		return Ticket{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// Get returns one ticket scoped to the tenant.
func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (Ticket, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanTicket(row)
}

// ListByUser returns the requester's own tickets, newest first.
func (s *Store) ListByUser(ctx context.Context, tenantID, userID uuid.UUID) ([]Ticket, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// ListAll returns every ticket in the tenant, newest first. Admin surface.
func (s *Store) ListAll(ctx context.Context, tenantID uuid.UUID) ([]Ticket, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE tenant_id = $1
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTickets(rows)
}

// Messages returns the ticket thread in chronological order.
func (s *Store) Messages(ctx context.Context, ticketID uuid.UUID) ([]Message, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, ticket_id, author_id, from_admin, body, created_at
		FROM ticket_messages WHERE ticket_id = $1
		ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.FromAdmin, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendMessage adds a message and moves the ticket status. A user message
// reopens the thread; an admin reply marks it answered.
func (s *Store) AppendMessage(ctx context.Context, ticketID, authorID uuid.UUID, fromAdmin bool, body string) (Message, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback(ctx)

	var m Message
	err = tx.QueryRow(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, author_id, from_admin, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, ticket_id, author_id, from_admin, body, created_at`,
		uuid.New(), ticketID, authorID, fromAdmin, body).
		Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.FromAdmin, &m.Body, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	next := StatusOpen
	if fromAdmin {
		next = StatusAnswered
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET status = $2, updated_at = now() WHERE id = $1`, ticketID, next); err != nil {
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Close marks the ticket closed.
func (s *Store) Close(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE tickets SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`, tenantID, id, StatusClosed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectTickets(rows pgx.Rows) ([]Ticket, error) {
	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Subject, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrNotFound
	}
	return t, err
}
