package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"attire-api/internal/auth"
	"attire-api/internal/domain"
	"attire-api/internal/repository"
	"attire-api/internal/validate"
)

// TokenIssuer mints and verifies bearer tokens.
type TokenIssuer interface {
	Issue(subjectID string) (string, error)
	Verify(raw string) (auth.Claims, error)
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// Notifier delivers account emails. SendWelcome may be asynchronous; SendPasswordReset
// must report delivery failure because the reset is rolled back on error.
type Notifier interface {
	SendWelcome(ctx context.Context, to domain.Profile, appURL string) error
	SendPasswordReset(ctx context.Context, to domain.Profile, resetURL string) error
}

// AuthResult is returned by every operation that signs the user in.
type AuthResult struct {
	User  domain.Profile
	Token string
}

// UserService describes the account and session lifecycle.
type UserService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Authenticate(ctx context.Context, rawToken string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, secret string, in ResetPasswordInput) (*AuthResult, error)
	UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) (*AuthResult, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*AuthResult, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Config wires a UserService.
type Config struct {
	Users        repository.UserRepository
	Tokens       TokenIssuer
	Hasher       PasswordHasher
	Notifier     Notifier
	AppURL       string
	ResetURLBase string
	ResetTTL     time.Duration
	Logger       *logrus.Logger
	Now          func() time.Time
}

type userService struct {
	users        repository.UserRepository
	tokens       TokenIssuer
	hasher       PasswordHasher
	notifier     Notifier
	appURL       string
	resetURLBase string
	resetTTL     time.Duration
	logger       *logrus.Logger
	now          func() time.Time

	// compared against when the email is unknown so both paths cost one bcrypt run
	dummyHash string
}

func NewUserService(cfg Config) (UserService, error) {
	if cfg.Users == nil || cfg.Tokens == nil || cfg.Hasher == nil || cfg.Notifier == nil {
		return nil, errors.New("user service: users, tokens, hasher and notifier are required")
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dummy, err := cfg.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &userService{
		users:        cfg.Users,
		tokens:       cfg.Tokens,
		hasher:       cfg.Hasher,
		notifier:     cfg.Notifier,
		appURL:       cfg.AppURL,
		resetURLBase: strings.TrimSpace(cfg.ResetURLBase),
		resetTTL:     cfg.ResetTTL,
		logger:       cfg.Logger,
		now:          cfg.Now,
		dummyHash:    dummy,
	}, nil
}

func (s *userService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Gender:       domain.Gender(in.Gender),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := s.notifier.SendWelcome(ctx, user.Profile(), s.appURL); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("queue welcome email")
	}

	return s.signIn(user)
}

func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = validate.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, newError(KindValidation, "Please provide email and password", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		_, _ = s.hasher.Compare(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.Active {
		return nil, ErrInvalidCredentials
	}

	return s.signIn(user)
}

func (s *userService) Authenticate(ctx context.Context, rawToken string) (*domain.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrNotLoggedIn
	}

	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserGone
	}
	if user.PasswordChangedAfter(claims.IssuedAt) {
		return nil, ErrPasswordChanged
	}

	return user, nil
}

func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	email = validate.NormalizeEmail(email)
	if email == "" {
		return newError(KindValidation, "Please provide a valid registered email address", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoSuchEmail
		}
		return err
	}
	if !user.Active {
		return ErrNoSuchEmail
	}

	secret, digest, err := auth.NewResetSecret()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, digest, s.now().Add(s.resetTTL)); err != nil {
		return err
	}

	resetURL, err := s.resetURL(secret)
	if err == nil {
		err = s.notifier.SendPasswordReset(ctx, user.Profile(), resetURL)
	}
	if err != nil {
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.logger.WithError(clearErr).WithField("user_id", user.ID).Error("roll back reset token")
		}
		return newError(KindDependency, "There was an error sending the email. Try again later", err)
	}
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, secret string, in ResetPasswordInput) (*AuthResult, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	digest := auth.HashResetSecret(secret)
	user, err := s.users.GetByResetToken(ctx, digest, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}
	err = s.changePassword(user, in.Password, func(hash string, changedAt time.Time) error {
		return s.users.ConsumeResetToken(ctx, user.ID, digest, hash, changedAt)
	})
	if err != nil {
		// a concurrent request consumed the secret between lookup and write
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return s.signIn(user)
}

func (s *userService) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) (*AuthResult, error) {
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, in.CurrentPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongCurrentPassword
	}

	err = s.changePassword(user, in.Password, func(hash string, changedAt time.Time) error {
		return s.users.UpdatePassword(ctx, user.ID, hash, changedAt)
	})
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*AuthResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}

	in.normalize()
	merged := ProfileInput{
		Name:   firstNonEmpty(in.Name, user.Name),
		Email:  firstNonEmpty(in.Email, user.Email),
		Phone:  firstNonEmpty(in.Phone, user.Phone),
		Gender: firstNonEmpty(in.Gender, string(user.Gender)),
	}
	if err := merged.Validate(); err != nil {
		return nil, validationError(err)
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, repository.ProfilePatch{
		Name:   merged.Name,
		Email:  merged.Email,
		Phone:  merged.Phone,
		Gender: domain.Gender(merged.Gender),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserGone
		}
		return nil, err
	}
	return s.signIn(updated)
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// changePassword hashes password and persists it through store, stamped with the
// current time. Tokens issued before that instant stop authenticating; the token
// signed right after carries the same or a later instant and stays valid.
func (s *userService) changePassword(user *domain.User, password string, store func(hash string, changedAt time.Time) error) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	changedAt := s.now()
	if err := store(hash, changedAt); err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	return nil
}

func (s *userService) signIn(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Profile(), Token: token}, nil
}

func (s *userService) resetURL(secret string) (string, error) {
	if s.resetURLBase == "" {
		return "", errors.New("reset url base is not configured")
	}
	u, err := url.JoinPath(s.resetURLBase, secret)
	if err != nil {
		return "", fmt.Errorf("build reset url: %w", err)
	}
	return u, nil
}

func validationError(err error) *Error {
	return newError(KindValidation, validate.Message(err), err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
