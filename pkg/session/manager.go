package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/mail"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

const (
	// VerificationTTL is the lifetime of an email verification token.
	VerificationTTL = 30 * time.Minute

	// DefaultRefreshTTL is used when Config.RefreshTTL is zero.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8

	// TokenType is the scheme clients present session tokens with.
	TokenType = "Bearer"
)

// VerificationSender delivers the verification link. Implementations must
// not block on delivery.
type VerificationSender interface {
	SendVerificationEmail(to, link string)
}

// Config configures the manager.
type Config struct {
	RefreshTTL time.Duration
	// PublicBaseURL prefixes verification links.
	PublicBaseURL string
	// DefaultRole is granted to self-registered users.
	DefaultRole string
}

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// Tokens is the result of a login or refresh.
type Tokens struct {
	AccessToken      string      `json:"accessToken"`
	TokenType        string      `json:"tokenType"`
	ExpiresAt        time.Time   `json:"expiresAt"`
	RefreshToken     string      `json:"refreshToken"`
	RefreshExpiresAt time.Time   `json:"refreshExpiresAt"`
	User             *model.User `json:"user"`
	Roles            []string    `json:"roles"`
	Permissions      []string    `json:"permissions"`
}

// Manager orchestrates the session lifecycle.
type Manager struct {
	store     storage.Store
	tokens    *auth.TokenService
	resolver  *rbac.Resolver
	encoder   auth.PasswordEncoder
	generator *auth.TokenGenerator
	mailer    VerificationSender
	cfg       Config
	log       logrus.FieldLogger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(store storage.Store, tokens *auth.TokenService, resolver *rbac.Resolver, encoder auth.PasswordEncoder,
	mailer VerificationSender, cfg Config, log logrus.FieldLogger, metrics *observability.Metrics) *Manager {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = rbac.RoleUser
	}
	return &Manager{
		store:     store,
		tokens:    tokens,
		resolver:  resolver,
		encoder:   encoder,
		generator: auth.NewTokenGenerator(),
		mailer:    mailer,
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// finish records the outcome of op in metrics and logs failures.
func (m *Manager) finish(ctx context.Context, op string, err error) {
	code := apperrors.CodeOf(err)
	m.metrics.AuthEvent(op, string(code))
	if err != nil {
		log := observability.FromContext(ctx, m.log).WithFields(logrus.Fields{
			"operation": op,
			"code":      code,
		})
		if code.HTTPStatus() >= 500 {
			log.WithError(err).Error("Session operation failed")
		} else {
			log.Warn("Session operation rejected")
		}
	}
}

// ValidatePassword enforces the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.Newf(apperrors.CodeValidation, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateEmail checks the shape of a normalized address.
func ValidateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return apperrors.Newf(apperrors.CodeValidation, "email is invalid")
	}
	return nil
}

// Register creates a disabled account and mails a verification link.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (user *model.User, err error) {
	ctx, span := observability.StartSpan(ctx, "session.Register")
	defer func() {
		m.finish(ctx, "register", err)
		observability.EndSpan(span, err)
	}()

	email := model.NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if fullName == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "fullName is required")
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := m.encoder.Encode(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var token string
	err = m.store.WithTx(ctx, func(q storage.Queries) error {
		exists, err := q.EmailExists(ctx, email)
		if err != nil {
			return apperrors.Internal(err)
		}
		if exists {
			return apperrors.New(apperrors.CodeEmailAlreadyExists)
		}

		role, err := q.GetRoleByName(ctx, m.cfg.DefaultRole)
		if err != nil {
			return apperrors.Internal(err)
		}

		now := m.now()
		user = &model.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Enabled:      false,
			Roles:        []model.Role{*role},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := q.CreateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperrors.New(apperrors.CodeEmailAlreadyExists)
			}
			return apperrors.Internal(err)
		}

		token, err = m.IssueVerificationToken(ctx, q, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.SendVerification(user.Email, token)
	return user, nil
}

// IssueVerificationToken stores a new verification token for userID through
// q and returns the plain token. Call SendVerification once q commits.
func (m *Manager) IssueVerificationToken(ctx context.Context, q storage.TokenStore, userID int64) (string, error) {
	token, hash, err := m.generator.Generate()
	if err != nil {
		return "", apperrors.Internal(err)
	}
	now := m.now()
	if err := q.CreateVerificationToken(ctx, &model.VerificationToken{
		UserID:    userID,
		Token:     hash,
		ExpiresAt: now.Add(VerificationTTL),
		CreatedAt: now,
	}); err != nil {
		return "", apperrors.Internal(err)
	}
	return token, nil
}

// SendVerification hands the verification link for token to the mailer.
func (m *Manager) SendVerification(email, token string) {
	m.mailer.SendVerificationEmail(email, mail.VerificationLink(m.cfg.PublicBaseURL, token))
}

// VerifyEmail consumes token and enables its owner, atomically.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.VerifyEmail")
	defer func() {
		m.finish(ctx, "verify", err)
		observability.EndSpan(span, err)
	}()

	if token == "" {
		return apperrors.New(apperrors.CodeVerifyTokenInvalid)
	}
	hash := auth.HashToken(token)

	return m.store.WithTx(ctx, func(q storage.Queries) error {
		vt, err := q.GetVerificationToken(ctx, hash)
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeVerifyTokenInvalid)
		}
		if err != nil {
			return apperrors.Internal(err)
		}

		now := m.now()
		if vt.IsUsed() {
			return apperrors.New(apperrors.CodeVerifyTokenUsed)
		}
		if vt.IsExpired(now) {
			return apperrors.New(apperrors.CodeVerifyTokenExpired)
		}

		used, err := q.MarkVerificationTokenUsed(ctx, vt.ID, now)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !used {
			// Lost the race against a concurrent verify.
			return apperrors.New(apperrors.CodeVerifyTokenUsed)
		}

		user, err := q.GetUserByID(ctx, vt.UserID)
		if err != nil {
			return apperrors.Internal(err)
		}
		user.Enabled = true
		user.UpdatedAt = now
		if err := q.UpdateUser(ctx, user); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
}

// Login checks credentials and issues a session token and a refresh token.
func (m *Manager) Login(ctx context.Context, email, password string) (tokens *Tokens, err error) {
	ctx, span := observability.StartSpan(ctx, "session.Login")
	defer func() {
		m.finish(ctx, "login", err)
		observability.EndSpan(span, err)
	}()

	user, err := m.store.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeInvalidCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !m.encoder.Matches(user.PasswordHash, password) {
		return nil, apperrors.New(apperrors.CodeInvalidCredentials)
	}
	if !user.Enabled {
		return nil, apperrors.New(apperrors.CodeEmailNotVerified)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	permissions, err := m.resolver.Permissions(ctx, user.RoleNames())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	tokens, err = m.issue(user, permissions)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateRefreshToken(ctx, m.refreshRecord(user.ID, tokens)); err != nil {
		return nil, apperrors.Internal(err)
	}
	return tokens, nil
}

// Refresh rotates refreshToken: the presented token is revoked and a new
// refresh token and session token are issued in the same transaction.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (tokens *Tokens, err error) {
	ctx, span := observability.StartSpan(ctx, "session.Refresh")
	defer func() {
		m.finish(ctx, "refresh", err)
		observability.EndSpan(span, err)
	}()

	hash := auth.HashToken(refreshToken)

	// Permissions are resolved before the transaction; the resolver reads
	// through the store, not through the transaction.
	presented, err := m.store.GetRefreshToken(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeInvalidCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if presented.State(m.now()) != model.RefreshTokenActive {
		return nil, apperrors.New(apperrors.CodeInvalidCredentials)
	}
	owner, err := m.store.GetUserByID(ctx, presented.UserID)
	if err != nil {
		return nil, notFound(err, apperrors.CodeInvalidCredentials)
	}
	permissions, err := m.resolver.Permissions(ctx, owner.RoleNames())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	err = m.store.WithTx(ctx, func(q storage.Queries) error {
		now := m.now()
		if now.After(presented.ExpiresAt) {
			return apperrors.New(apperrors.CodeInvalidCredentials)
		}
		user, err := q.GetUserByID(ctx, presented.UserID)
		if err != nil {
			return notFound(err, apperrors.CodeInvalidCredentials)
		}
		if !user.Enabled {
			return apperrors.New(apperrors.CodeEmailNotVerified)
		}
		revoked, err := q.RevokeRefreshToken(ctx, presented.ID, now)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !revoked {
			// Already rotated or logged out by a concurrent request.
			return apperrors.New(apperrors.CodeInvalidCredentials)
		}

		tokens, err = m.issue(user, permissions)
		if err != nil {
			return err
		}
		if err := q.CreateRefreshToken(ctx, m.refreshRecord(user.ID, tokens)); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout revokes refreshToken. Revoking an already revoked token succeeds.
func (m *Manager) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.Logout")
	defer func() {
		m.finish(ctx, "logout", err)
		observability.EndSpan(span, err)
	}()

	rt, err := m.store.GetRefreshToken(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeInvalidCredentials)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	if rt.RevokedAt != nil {
		return nil
	}
	if _, err := m.store.RevokeRefreshToken(ctx, rt.ID, m.now()); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// issue signs a session token and generates an opaque refresh token.
func (m *Manager) issue(user *model.User, permissions []string) (*Tokens, error) {
	access, expiresAt, err := m.tokens.Issue(user, permissions)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, _, err := m.generator.Generate()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Tokens{
		AccessToken:      access,
		TokenType:        TokenType,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: m.now().Add(m.cfg.RefreshTTL),
		User:             user,
		Roles:            user.RoleNames(),
		Permissions:      permissions,
	}, nil
}

func (m *Manager) refreshRecord(userID int64, tokens *Tokens) *model.RefreshToken {
	return &model.RefreshToken{
		UserID:    userID,
		Token:     auth.HashToken(tokens.RefreshToken),
		ExpiresAt: tokens.RefreshExpiresAt,
		CreatedAt: m.now(),
	}
}

func notFound(err error, code apperrors.Code) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(code)
	}
	return apperrors.Internal(err)
}
