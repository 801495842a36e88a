package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested auth record does not exist.
var ErrNotFound = errors.New("auth: not found")

// UserRecord is the persisted shape of a tenant user.
type UserRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionRecord is a stored refresh token. Only the SHA-256 hash of the token
// ever touches the database.
type SessionRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ResetRecord is a stored password reset token.
type ResetRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Store persists users, refresh sessions, and password resets in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, tenant_id, name, email, password_hash, roles, created_at, updated_at`

// CreateUser inserts a user under the tenant. A duplicate email inside the
// tenant surfaces as a pgconn unique violation for the caller to classify.
func (s *Store) CreateUser(ctx context.Context, tenantID uuid.UUID, name, email, passwordHash string) (UserRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, name, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		uuid.New(), tenantID, name, email, passwordHash)
	return scanUser(row)
}

// GetUserByEmail looks a user up inside the tenant.
func (s *Store) GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (UserRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
	return scanUser(row)
}

// GetUserByID looks a user up by primary key.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateSession stores a refresh token hash for the user.
func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash, userAgent, ip string, expiresAt time.Time) (SessionRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, token_hash, user_agent, ip, expires_at, created_at`,
		uuid.New(), userID, tokenHash, userAgent, ip, expiresAt)
	return scanSession(row)
}

// GetSessionByToken resolves a refresh token hash to its session.
func (s *Store) GetSessionByToken(ctx context.Context, tokenHash string) (SessionRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, user_agent, ip, expires_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

// RotateSessionToken swaps the stored hash and pushes the expiry forward.
func (s *Store) RotateSessionToken(ctx context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE refresh_tokens SET token_hash = $2, expires_at = $3 WHERE id = $1`,
		sessionID, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessionByToken removes a single refresh session.
func (s *Store) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteSessionsByUser removes every refresh session the user holds.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

// CreatePasswordReset stores a reset token for the user.
func (s *Store) CreatePasswordReset(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, token, expiresAt)
	return err
}

// GetPasswordResetByToken resolves a reset token.
func (s *Store) GetPasswordResetByToken(ctx context.Context, token string) (ResetRecord, error) {
	var rec ResetRecord
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, used_at
		FROM password_resets WHERE token = $1`, token).
		Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.ExpiresAt, &rec.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResetRecord{}, ErrNotFound
	}
	return rec, err
}

// UsePasswordReset marks the reset token consumed.
func (s *Store) UsePasswordReset(ctx context.Context, token string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE password_resets SET used_at = now() WHERE token = $1`, token)
	return err
}

// DeletePasswordResetsByUser clears all outstanding resets for the user.
func (s *Store) DeletePasswordResetsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
	return err
}

// UpdateUserPassword replaces the stored password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	return u, err
}

func scanSession(row pgx.Row) (SessionRecord, error) {
	var sess SessionRecord
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.UserAgent, &sess.IP, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	return sess, err
}
