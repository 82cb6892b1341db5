package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modern-blog/internal/auth"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/validation"
	"github.com/rs/zerolog"
)

const (
	msgInvalidInput      = "Please correct the highlighted fields"
	msgInvalidLogin      = "Invalid email or password"
	msgAccountExists     = "User with this email or username already exists"
	msgSessionIssueError = "Could not start a session"
)

// authService is the concrete implementation of AuthService
type authService struct {
	users     repository.UserRepository
	quota     QuotaGuard
	issuer    SessionIssuer
	validator *validation.Validator
	log       zerolog.Logger
}

func newAuthService(users repository.UserRepository, quota QuotaGuard, issuer SessionIssuer, v *validation.Validator, log zerolog.Logger) *authService {
	return &authService{
		users:     users,
		quota:     quota,
		issuer:    issuer,
		validator: v,
		log:       log.With().Str("service", "auth").Logger(),
	}
}

// Register creates an account and signs it in. Administrator registrations
// pass the quota guard and are rejected outright once the cap is reached.
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, *Session, error) {
	if fields := s.validator.ValidateRegistration(req); len(fields) > 0 {
		return nil, nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	role, _ := models.ParseRole(req.Role)
	decision := policy.Authorize(policy.Anonymous, policy.ActionRegister, policy.Resource{Role: role})
	if err := decision.Err(); err != nil {
		return nil, nil, err
	}
	if decision.QuotaGuarded {
		ok, err := s.quota.CanGrantAdminRole(ctx)
		if err != nil {
			return nil, nil, errs.NewUnexpected("Registration failed", err)
		}
		if !ok {
			return nil, nil, errs.NewAdminQuotaExceeded()
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, nil, errs.NewUnexpected("Registration failed", err)
	}
	if exists {
		return nil, nil, errs.NewValidation(msgAccountExists)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, nil, errs.NewUnexpected("Registration failed", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Bio:          req.Bio,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrNoAdminSlot):
			s.log.Warn().Str("username", username).Msg("Administrator registration rejected, quota reached")
			return nil, nil, errs.NewAdminQuotaExceeded()
		case errors.Is(err, repository.ErrDuplicate):
			return nil, nil, errs.NewValidation(msgAccountExists)
		default:
			return nil, nil, errs.NewUnexpected("Registration failed", err)
		}
	}

	s.log.Info().Str("account_id", user.ID).Str("role", string(user.Role)).Msg("Account registered")

	session, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login verifies credentials. A failed login changes nothing and issues
// no session.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, *Session, error) {
	if fields := s.validator.ValidateLogin(req); len(fields) > 0 {
		return nil, nil, errs.NewValidation(msgInvalidLogin, fields...)
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, nil, errs.NewUnexpected("Login failed", err)
	}
	if user == nil {
		return nil, nil, errs.NewValidation(msgInvalidLogin)
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", user.ID).Msg("Stored password hash unreadable")
		return nil, nil, errs.NewValidation(msgInvalidLogin)
	}
	if !ok {
		return nil, nil, errs.NewValidation(msgInvalidLogin)
	}

	if req.ExpectedRole != "" {
		expected, valid := models.ParseRole(req.ExpectedRole)
		if !valid || expected != user.Role {
			return nil, nil, errs.NewValidation(fmt.Sprintf(
				"This account is registered as %s, not %s", user.Role.DisplayName(), expected.DisplayName()))
		}
	}

	if auth.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// upgradeHash replaces a legacy bcrypt hash after a successful login
func (s *authService) upgradeHash(ctx context.Context, id, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", id).Msg("Failed to rehash password")
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		s.log.Error().Err(err).Str("account_id", id).Msg("Failed to store upgraded password hash")
		return
	}
	s.log.Info().Str("account_id", id).Msg("Upgraded legacy password hash")
}

func (s *authService) issue(user *models.User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, errs.NewUnexpected(msgSessionIssueError, err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve turns a session token into an actor
func (s *authService) Resolve(ctx context.Context, token string) (policy.Actor, bool) {
	return s.issuer.Resolve(ctx, token)
}
