package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-faktur/internal/common"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
	defaultResetTTL   = 2 * time.Hour

	claimRoles  = "roles"
	claimTenant = "tid"
)

// Storage is the persistence surface the service needs. *Store satisfies it.
type Storage interface {
	CreateUser(ctx context.Context, tenantID uuid.UUID, name, email, passwordHash string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error)
	CreateSession(ctx context.Context, userID uuid.UUID, tokenHash, userAgent, ip string, expiresAt time.Time) (SessionRecord, error)
	GetSessionByToken(ctx context.Context, tokenHash string) (SessionRecord, error)
	RotateSessionToken(ctx context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error
	DeleteSessionByToken(ctx context.Context, tokenHash string) error
	DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error
	CreatePasswordReset(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetPasswordResetByToken(ctx context.Context, token string) (ResetRecord, error)
	UsePasswordReset(ctx context.Context, token string) error
	DeletePasswordResetsByUser(ctx context.Context, userID uuid.UUID) error
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Service coordinates authentication, password management, and session persistence.
type Service struct {
	store      Storage
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
	signer     jwa.SignatureAlgorithm
	issuer     string
	audience   string
	clockSkew  time.Duration
	mailer     common.EmailSender
	resetBase  string
}

// Config configures the auth service.
type Config struct {
	Store           Storage
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	Mailer          common.EmailSender
	ResetBaseURL    string
}

// User is the safe subset of the user model returned to clients.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	User          User      `json:"user"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// RefreshResult represents the outcome of a refresh operation.
type RefreshResult struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// Claims is what a validated access token resolves to.
type Claims struct {
	UserID   string
	TenantID string
	Roles    []string
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-faktur"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "faktur-clients"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		store:      cfg.Store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
		signer:     jwa.HS256,
		issuer:     issuer,
		audience:   audience,
		clockSkew:  clockSkew,
		mailer:     cfg.Mailer,
		resetBase:  strings.TrimRight(strings.TrimSpace(cfg.ResetBaseURL), "/"),
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new user under the tenant.
func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, name, email, password string) (User, error) {
	if strings.TrimSpace(name) == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "email is required", http.StatusBadRequest, nil)
	}
	if len(password) < 8 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, tenantID, strings.TrimSpace(name), normalizedEmail, hash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return convertUser(created), nil
}

// Login verifies credentials within the tenant and issues a token pair.
func (s *Service) Login(ctx context.Context, tenantID uuid.UUID, email, password, userAgent, ip string) (LoginResult, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return LoginResult{}, invalidCredentials(nil)
	}

	user, err := s.store.GetUserByEmail(ctx, tenantID, normalizedEmail)
	if err != nil {
		return LoginResult{}, invalidCredentials(nil)
	}

	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials(nil)
	}

	accessToken, accessExpiry, err := s.signAccessToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshExpiry, err := s.createSession(ctx, user.ID, userAgent, ip)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	return LoginResult{
		User:          convertUser(user),
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.store.DeleteSessionByToken(ctx, common.Sha256Hex(token))
}

// Refresh validates and rotates a refresh token, issuing a fresh access token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return RefreshResult{}, unauthorized(nil)
	}

	hashed := common.Sha256Hex(token)
	session, err := s.store.GetSessionByToken(ctx, hashed)
	if err != nil {
		return RefreshResult{}, unauthorized(err)
	}
	if s.now().After(session.ExpiresAt) {
		_ = s.store.DeleteSessionByToken(ctx, hashed)
		return RefreshResult{}, unauthorized(nil)
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		_ = s.store.DeleteSessionByToken(ctx, hashed)
		return RefreshResult{}, unauthorized(err)
	}

	accessToken, accessExpiry, err := s.signAccessToken(user)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("sign access token: %w", err)
	}

	newRefresh, newHash, refreshExpiry, err := s.newRefreshToken()
	if err != nil {
		return RefreshResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.RotateSessionToken(ctx, session.ID, newHash, refreshExpiry); err != nil {
		_ = s.store.DeleteSessionByToken(ctx, hashed)
		return RefreshResult{}, fmt.Errorf("rotate session token: %w", err)
	}

	return RefreshResult{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  newRefresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return User{}, unauthorized(err)
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return User{}, unauthorized(err)
	}
	return convertUser(user), nil
}

// InitiatePasswordReset creates a reset token and mails the reset link when a
// mailer is configured. Unknown emails succeed silently so the endpoint does
// not disclose which addresses exist.
func (s *Service) InitiatePasswordReset(ctx context.Context, tenantID uuid.UUID, email string) error {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return nil
	}

	user, err := s.store.GetUserByEmail(ctx, tenantID, normalizedEmail)
	if err != nil {
		return nil
	}

	token, err := generateToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.store.CreatePasswordReset(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}

	if s.mailer == nil {
		return nil
	}
	link := fmt.Sprintf("%s/reset?token=%s", s.resetBase, token)
	body := fmt.Sprintf(`<p>A password reset was requested for this account.</p><p><a href="%s">Reset password</a></p>`, link)
	if err := s.mailer.Send(user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword validates the provided token, updates the password, and
// revokes every outstanding session for the user.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.NewAppError("INVALID_TOKEN", "invalid or expired token", http.StatusBadRequest, nil)
	}
	if len(newPassword) < 8 {
		return common.NewAppError("WEAK_PASSWORD", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}

	reset, err := s.store.GetPasswordResetByToken(ctx, trimmed)
	if err != nil {
		return common.NewAppError("INVALID_TOKEN", "invalid or expired token", http.StatusBadRequest, err)
	}
	if reset.UsedAt != nil || s.now().After(reset.ExpiresAt) {
		return common.NewAppError("INVALID_TOKEN", "invalid or expired token", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, reset.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.store.UsePasswordReset(ctx, trimmed); err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if err := s.store.DeleteSessionsByUser(ctx, reset.UserID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.store.DeletePasswordResetsByUser(ctx, reset.UserID); err != nil {
		return fmt.Errorf("delete password resets: %w", err)
	}
	return nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, unauthorized(nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if algorithm != s.signer {
		return Claims{}, unauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if err := s.validateToken(parsed); err != nil {
		return Claims{}, unauthorized(err)
	}

	claims := Claims{UserID: parsed.Subject()}
	if raw, ok := parsed.Get(claimTenant); ok {
		if tid, ok := raw.(string); ok {
			claims.TenantID = tid
		}
	}
	if raw, ok := parsed.Get(claimRoles); ok {
		if roles, ok := raw.([]any); ok {
			for _, r := range roles {
				if role, ok := r.(string); ok {
					claims.Roles = append(claims.Roles, role)
				}
			}
		}
	}
	return claims, nil
}

// validateToken checks issuer, audience, and the time-based claims against
// the service clock.
func (s *Service) validateToken(tok jwt.Token) error {
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	if s.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.clockSkew))
	}
	return jwt.Validate(tok, options...)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(user UserRecord) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(user.ID.String()).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(claimTenant, user.TenantID.String()).
		Claim(claimRoles, user.Roles)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) createSession(ctx context.Context, userID uuid.UUID, userAgent, ip string) (string, time.Time, error) {
	token, hashed, expiresAt, err := s.newRefreshToken()
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := s.store.CreateSession(ctx, userID, hashed, userAgent, ip, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *Service) newRefreshToken() (string, string, time.Time, error) {
	token, err := generateToken(48)
	if err != nil {
		return "", "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.refreshTTL)
	return token, common.Sha256Hex(token), expiresAt, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func convertUser(u UserRecord) User {
	return User{
		ID:        u.ID.String(),
		TenantID:  u.TenantID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func invalidCredentials(err error) error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, err)
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}
