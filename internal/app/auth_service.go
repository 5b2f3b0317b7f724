// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"movierec/internal/domain"
	"movierec/internal/logging"
	"movierec/internal/metrics"
	"movierec/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSSOIdentity indicates that the identity provider returned no usable email.
	ErrSSOIdentity = errors.New("identity provider returned no email")
)

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users  domain.UserRepository
	tokens *TokenIssuer
	policy PasswordPolicy
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, tokens *TokenIssuer, policy PasswordPolicy) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		policy: policy,
	}
}

// Register creates an account and logs it in. Input problems, including an
// email that is already registered, are returned as validation.Errors.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (res *AuthResult, err error) {
	log := logging.Ctx(ctx)
	defer func() {
		metrics.RecordAuth("register", err)
		if err != nil {
			log.Warn().Err(err).Msg("registration failed")
		} else {
			log.Info().Int64("user_id", res.UserID).Msg("user registered")
		}
	}()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = domain.NormalizeEmail(req.Email)

	var errs validation.Errors
	if verr, ok := validation.As(validation.Struct(req)); ok {
		errs = append(errs, verr...)
	}
	if req.Password != "" {
		errs = append(errs, s.policy.Check(req.Password)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if existing, lookupErr := s.users.GetByEmail(ctx, req.Email); lookupErr == nil && existing != nil {
		return nil, emailTaken(req.Email)
	} else if lookupErr != nil && !errors.Is(lookupErr, domain.ErrNotFound) {
		return nil, fmt.Errorf("register: lookup email: %w", lookupErr)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Username, req.Email, string(hash))
	if errors.Is(err, domain.ErrEmailTaken) {
		return nil, emailTaken(req.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("register: create user: %w", err)
	}

	return s.issue(user)
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (res *AuthResult, err error) {
	log := logging.Ctx(ctx)
	defer func() {
		metrics.RecordAuth("login", err)
		if err != nil {
			log.Warn().Err(err).Msg("login failed")
		} else {
			log.Debug().Int64("user_id", res.UserID).Msg("login successful")
		}
	}()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil || user == nil {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Msg("user lookup failed")
		}
		return nil, ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// LoginWithEmail issues a token for a user already authenticated by an
// external identity provider, creating the account on first sign-in. Such
// accounts get a hash of a random secret nobody knows, so Login never
// succeeds for them.
func (s *AuthService) LoginWithEmail(ctx context.Context, email, name string) (res *AuthResult, err error) {
	defer func() { metrics.RecordAuth("sso", err) }()

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, ErrSSOIdentity
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		if name = strings.TrimSpace(name); name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		var hash []byte
		if hash, err = unusablePasswordHash(); err != nil {
			return nil, err
		}
		user, err = s.users.Create(ctx, name, email, string(hash))
		if errors.Is(err, domain.ErrEmailTaken) {
			// Lost a race with a concurrent first sign-in.
			user, err = s.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("sso login: %w", err)
	}

	logging.Ctx(ctx).Info().Int64("user_id", user.ID).Msg("sso login")
	return s.issue(user)
}

func unusablePasswordHash() ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rand.Text()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash sso password: %w", err)
	}
	return hash, nil
}

// Authenticate resolves a bearer token to the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		metrics.RecordAuth("token", err)
		logging.Ctx(ctx).Debug().Err(err).Msg("token rejected")
		return domain.Identity{}, ErrInvalidToken
	}
	return id, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

func emailTaken(email string) validation.Errors {
	return validation.Errors{{Field: "email", Message: fmt.Sprintf("Email '%s' is already taken.", email)}}
}
