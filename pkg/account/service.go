package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/session"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Verifier issues and delivers email verification tokens.
type Verifier interface {
	IssueVerificationToken(ctx context.Context, q storage.TokenStore, userID int64) (string, error)
	SendVerification(email, token string)
}

// Service serves the caller's own account.
type Service struct {
	store    storage.Store
	encoder  auth.PasswordEncoder
	verifier Verifier
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService creates an account service. verifier is normally the session
// manager.
func NewService(store storage.Store, encoder auth.PasswordEncoder, verifier Verifier, log logrus.FieldLogger) *Service {
	return &Service{
		store:    store,
		encoder:  encoder,
		verifier: verifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetMe(ctx context.Context, p *auth.Principal) (*model.User, error) {
	if p == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized)
	}
	return s.load(ctx, s.store, p.UserID)
}

// UpdateProfile sets the caller's display name.
func (s *Service) UpdateProfile(ctx context.Context, p *auth.Principal, fullName string) (*model.User, error) {
	if p == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, apperrors.Newf(apperrors.CodeValidation, "fullName is required")
	}

	user, err := s.load(ctx, s.store, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.FullName == fullName {
		return user, nil
	}
	user.FullName = fullName
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, p *auth.Principal, current, next string) error {
	if p == nil {
		return apperrors.New(apperrors.CodeUnauthorized)
	}
	if err := session.ValidatePassword(next); err != nil {
		return err
	}

	user, err := s.load(ctx, s.store, p.UserID)
	if err != nil {
		return err
	}
	if !s.encoder.Matches(user.PasswordHash, current) {
		return apperrors.New(apperrors.CodeCurrentPassword)
	}
	if current == next {
		return apperrors.New(apperrors.CodePasswordSameAsOld)
	}

	hash, err := s.encoder.Encode(next)
	if err != nil {
		return apperrors.Internal(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return apperrors.Internal(err)
	}

	s.log.WithField("user_id", user.ID).Info("Password changed")
	return nil
}

// ChangeEmail moves the caller to newEmail. The account is disabled and a
// verification mail is sent to the new address; it must be confirmed before
// the next login.
func (s *Service) ChangeEmail(ctx context.Context, p *auth.Principal, newEmail, currentPassword string) (*model.User, error) {
	if p == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized)
	}
	email := model.NormalizeEmail(newEmail)
	if err := session.ValidateEmail(email); err != nil {
		return nil, err
	}

	// Password check runs outside the transaction; bcrypt is slow.
	user, err := s.load(ctx, s.store, p.UserID)
	if err != nil {
		return nil, err
	}
	if !s.encoder.Matches(user.PasswordHash, currentPassword) {
		return nil, apperrors.New(apperrors.CodeCurrentPassword)
	}
	if user.Email == email {
		return nil, apperrors.New(apperrors.CodeEmailSameAsOld)
	}

	var token string
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		exists, err := q.EmailExists(ctx, email)
		if err != nil {
			return apperrors.Internal(err)
		}
		if exists {
			return apperrors.New(apperrors.CodeEmailAlreadyExists)
		}

		user, err = s.load(ctx, q, p.UserID)
		if err != nil {
			return err
		}
		user.Email = email
		user.Enabled = false
		user.UpdatedAt = s.now()
		if err := q.UpdateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperrors.New(apperrors.CodeEmailAlreadyExists)
			}
			return apperrors.Internal(err)
		}

		token, err = s.verifier.IssueVerificationToken(ctx, q, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.verifier.SendVerification(user.Email, token)
	observability.FromContext(ctx, s.log).WithField("user_id", user.ID).Info("Email changed, verification pending")
	return user, nil
}

func (s *Service) load(ctx context.Context, q storage.UserReader, id int64) (*model.User, error) {
	user, err := q.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeUserNotFound)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
