package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type JWTConfig struct {
	Secret          string
	AccessDuration  time.Duration
	RefreshDuration time.Duration
	Issuer          string
	Audience        string
}

// Claims represents the custom JWT claims used by the application.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Type string `json:"type"` // "access" or "refresh"
}

// JWTService handles generation, validation, and revocation of JWT tokens.
type JWTService struct {
	secret          string
	accessDuration  time.Duration
	refreshDuration time.Duration
	issuer          string
	audience        string
	cache           ports.Cache
	log             *zap.Logger
}

// NewJWTService creates a new JWTService instance.
func NewJWTService(cfg JWTConfig, cache ports.Cache, log *zap.Logger) *JWTService {
	if cfg.AccessDuration <= 0 {
		cfg.AccessDuration = 15 * time.Minute
	}
	if cfg.RefreshDuration <= 0 {
		cfg.RefreshDuration = 7 * 24 * time.Hour
	}

	log.Info("JWT service initialized",
		zap.Duration("access_duration", cfg.AccessDuration),
		zap.Duration("refresh_duration", cfg.RefreshDuration),
	)

	return &JWTService{
		secret:          cfg.Secret,
		accessDuration:  cfg.AccessDuration,
		refreshDuration: cfg.RefreshDuration,
		issuer:          cfg.Issuer,
		audience:        cfg.Audience,
		cache:           cache,
		log:             log,
	}
}

func (s *JWTService) registered(user *domain.User, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    s.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return claims
}

// GenerateAccessToken creates a signed JWT access token for the given user.
// The token includes sub (user ID), role, exp, type="access", and jti (unique ID).
func (s *JWTService) GenerateAccessToken(user *domain.User) (string, error) {
	claims := Claims{
		RegisteredClaims: s.registered(user, s.accessDuration),
		Role:             string(user.Role),
		Type:             TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.secret))
	if err != nil {
		s.log.Error("failed to sign access token",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	s.log.Debug("access token generated",
		zap.String("user_id", user.ID),
		zap.String("jti", claims.ID),
	)

	return signedToken, nil
}

// GenerateRefreshToken creates a signed JWT refresh token for the given user.
// The token includes sub (user ID), exp, type="refresh", and jti (unique ID).
func (s *JWTService) GenerateRefreshToken(user *domain.User) (string, error) {
	claims := Claims{
		RegisteredClaims: s.registered(user, s.refreshDuration),
		Type:             TokenTypeRefresh,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.secret))
	if err != nil {
		s.log.Error("failed to sign refresh token",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	s.log.Debug("refresh token generated",
		zap.String("user_id", user.ID),
		zap.String("jti", claims.ID),
	)

	return signedToken, nil
}

// ValidateToken parses and validates a JWT token string, returning the claims
// if the token is valid and has not been revoked.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	s.log.Debug("token validated",
		zap.String("subject", claims.Subject),
		zap.String("type", claims.Type),
		zap.String("jti", claims.ID),
	)

	return claims, nil
}

// RevokeToken stores the token ID in the cache until it would have
// naturally expired.
func (s *JWTService) RevokeToken(ctx context.Context, tokenID string) error {
	key := fmt.Sprintf("revoked_token:%s", tokenID)

	// Store with a TTL equal to the longer of the two token durations
	// to ensure the revocation outlasts any valid token.
	ttl := s.refreshDuration
	if s.accessDuration > ttl {
		ttl = s.accessDuration
	}

	err := s.cache.Set(ctx, key, "revoked", ttl)
	if err != nil {
		s.log.Error("failed to revoke token",
			zap.String("token_id", tokenID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.log.Info("token revoked",
		zap.String("token_id", tokenID),
	)

	return nil
}

// IsTokenRevoked checks whether a token ID has been revoked.
func (s *JWTService) IsTokenRevoked(ctx context.Context, tokenID string) bool {
	key := fmt.Sprintf("revoked_token:%s", tokenID)

	val, err := s.cache.Get(ctx, key)
	if err != nil {
		// If the key does not exist or there is an error, treat as not revoked.
		return false
	}

	return val == "revoked"
}
