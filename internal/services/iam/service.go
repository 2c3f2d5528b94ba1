// Package iam manages officer accounts and password login.
//
// Accounts are identified by badge id. Passwords are stored as bcrypt hashes
// and login exchanges a badge id and password for a signed bearer token.
package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/repository"
	"github.com/ppandrangi/crms/internal/telemetry"
)

// MinPasswordLength is the shortest accepted plaintext password.
const MinPasswordLength = 6

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, so multibyte
// passwords hit it before the schema's character limit.
const MaxPasswordBytes = 72

// Client-facing messages
const (
	MessageInvalidCredentials = "Invalid credentials."
	MessageBadgeTaken         = "Badge ID already registered."
	MessageAuthNotConfigured  = "Server authentication is not configured."
)

// TokenIssuer signs bearer tokens for an authenticated identity.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// CreateUserInput carries the fields of a new account.
type CreateUserInput struct {
	BadgeID  string
	Name     string
	Password string
	IsAdmin  bool
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token string
	User  *models.User
}

// Service handles account creation and credential checks
type Service struct {
	users       repository.UserRepository
	tokens      TokenIssuer
	bcryptCost  int
	authMetrics *telemetry.AuthMetrics

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new IAM service
func NewService(users repository.UserRepository, tokens TokenIssuer) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: auth.DefaultBcryptCost,
	}
}

// WithBcryptCost overrides the bcrypt work factor (optional)
func (s *Service) WithBcryptCost(cost int) *Service {
	if cost > 0 {
		s.bcryptCost = cost
	}
	return s
}

// WithAuthMetrics records password login attempts (optional)
func (s *Service) WithAuthMetrics(metrics *telemetry.AuthMetrics) *Service {
	s.authMetrics = metrics
	return s
}

// CreateUser registers a new account. The badge id must be unused.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.CreateUser",
		attribute.Bool(telemetry.AttrIsAdmin, input.IsAdmin),
	)
	defer span.End()

	badgeID := strings.TrimSpace(input.BadgeID)
	name := strings.TrimSpace(input.Name)

	fields := apperr.FieldErrors{}
	if badgeID == "" {
		fields.Add("badgeId", "badgeId is required.")
	}
	if name == "" {
		fields.Add("name", "name is required.")
	}
	if len(input.Password) < MinPasswordLength {
		fields.Add("password", fmt.Sprintf("Must be at least %d characters.", MinPasswordLength))
	} else if len(input.Password) > MaxPasswordBytes {
		fields.Add("password", fmt.Sprintf("Must be at most %d bytes.", MaxPasswordBytes))
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed.", fields)
	}
	span.SetAttributes(attribute.String(telemetry.AttrBadgeID, badgeID))

	if _, err := s.users.GetByBadgeID(ctx, badgeID); err == nil {
		return nil, apperr.Conflict(MessageBadgeTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, apperr.Internal(fmt.Errorf("check badge id: %w", err))
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apperr.Internal(err)
	}

	user := &models.User{
		BadgeID:      badgeID,
		Name:         name,
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same badge.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict(MessageBadgeTaken)
		}
		telemetry.RecordError(span, err)
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}

	span.SetAttributes(attribute.String(telemetry.AttrUserID, user.ID))
	return user, nil
}

// FindByBadgeID returns the full account record, including the password hash.
func (s *Service) FindByBadgeID(ctx context.Context, badgeID string) (*models.User, error) {
	user, err := s.users.GetByBadgeID(ctx, strings.TrimSpace(badgeID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// VerifyPassword reports whether plaintext matches hash. It never fails.
func (s *Service) VerifyPassword(plaintext, hash string) bool {
	return auth.VerifyPassword(plaintext, hash)
}

// Login checks a badge id and password and issues a bearer token.
// Unknown badges and wrong passwords produce the same error after the same
// amount of bcrypt work.
func (s *Service) Login(ctx context.Context, badgeID, password string) (*LoginResult, error) {
	start := time.Now()
	badgeID = strings.TrimSpace(badgeID)

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Login",
		attribute.String(telemetry.AttrBadgeID, badgeID),
	)
	defer span.End()

	fields := apperr.FieldErrors{}
	if badgeID == "" {
		fields.Add("badgeId", "badgeId is required.")
	}
	if password == "" {
		fields.Add("password", "password is required.")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Validation failed.", fields)
	}

	user, err := s.users.GetByBadgeID(ctx, badgeID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			telemetry.RecordError(span, err)
			return nil, apperr.Internal(fmt.Errorf("lookup user: %w", err))
		}
		auth.VerifyPassword(password, s.dummyPasswordHash())
		s.authMetrics.RecordAuth(ctx, "password", false, "unknown_badge", msSince(start))
		telemetry.AddEvent(span, "authentication.failed")
		return nil, apperr.New(apperr.KindAuthFailed, MessageInvalidCredentials)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.authMetrics.RecordAuth(ctx, "password", false, "wrong_password", msSince(start))
		telemetry.AddEvent(span, "authentication.failed")
		return nil, apperr.New(apperr.KindAuthFailed, MessageInvalidCredentials)
	}

	token, err := s.tokens.Issue(auth.Identity{
		UserID:  user.ID,
		BadgeID: user.BadgeID,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, auth.ErrSigningSecretMissing) {
			return nil, apperr.Wrap(apperr.KindConfig, MessageAuthNotConfigured, err)
		}
		return nil, apperr.Internal(fmt.Errorf("issue token: %w", err))
	}

	s.authMetrics.RecordAuth(ctx, "password", true, "", msSince(start))
	span.SetAttributes(
		attribute.String(telemetry.AttrUserID, user.ID),
		attribute.Bool(telemetry.AttrIsAdmin, user.IsAdmin),
	)
	telemetry.AddEvent(span, "authentication.succeeded")

	return &LoginResult{Token: token, User: user}, nil
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list users: %w", err))
	}
	return users, nil
}

// dummyPasswordHash is compared against when the badge id is unknown.
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("crms-dummy-password", s.bcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
