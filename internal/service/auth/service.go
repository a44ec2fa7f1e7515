package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInactiveUser       = errors.New("user is not active")
)

const minPasswordLength = 8

type Service struct {
	userRepo ports.UserRepository
	jwt      *JWTService
	mailer   ports.EmailService
	log      *zap.Logger
}

// NewService wires authentication. mailer may be nil; the welcome mail is
// best-effort.
func NewService(userRepo ports.UserRepository, jwtSvc *JWTService, mailer ports.EmailService, log *zap.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		jwt:      jwtSvc,
		mailer:   mailer,
		log:      log,
	}
}

var _ ports.AuthService = (*Service)(nil)

func (s *Service) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("User lookup failed", zap.Error(err))
		return "", "", ErrInvalidCredentials
	}
	if user == nil {
		return "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}
	if user.Status != "" && user.Status != "Active" {
		return "", "", ErrInactiveUser
	}

	return s.generateTokens(user)
}

func (s *Service) Register(ctx context.Context, user *domain.User) error {
	email, err := domain.ParseEmailAddress(user.Email)
	if err != nil {
		return domain.NewError(domain.KindValidation, "auth.register", err)
	}
	if len(user.Password) < minPasswordLength {
		return ErrWeakPassword
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return ErrEmailTaken
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(email)
	user.Password = string(hashedPwd)
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	user.Status = "Active"

	if err := s.userRepo.Save(ctx, user); err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, user); err != nil {
			s.log.Warn("Welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

// RefreshToken issues a new access token for a valid, unrevoked refresh
// token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.claims(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil || user == nil {
		return "", ErrInvalidToken
	}

	return s.jwt.GenerateAccessToken(user)
}

func (s *Service) ValidateToken(ctx context.Context, tokenStr string) (*domain.User, error) {
	claims, err := s.claims(ctx, tokenStr, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// Logout revokes the given token. Revoking an already invalid token is
// an error so clients notice stale credentials.
func (s *Service) Logout(ctx context.Context, tokenStr string) error {
	claims, err := s.jwt.ValidateToken(tokenStr)
	if err != nil {
		return ErrInvalidToken
	}
	return s.jwt.RevokeToken(ctx, claims.ID)
}

func (s *Service) claims(ctx context.Context, tokenStr, tokenType string) (*Claims, error) {
	claims, err := s.jwt.ValidateToken(tokenStr)
	if err != nil || claims.Type != tokenType {
		return nil, ErrInvalidToken
	}
	if s.jwt.IsTokenRevoked(ctx, claims.ID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) generateTokens(user *domain.User) (string, string, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwt.GenerateRefreshToken(user)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
