package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

var (
	ErrSessionRevoked = errors.New("session has been revoked")
	ErrUnknownRole    = errors.New("role is not recognised")
)

// SessionService issues, validates and revokes session tokens.
type SessionService struct {
	store *redisStore
	jwt   *JWTService
}

func NewSessionService(redisClient *redis.Client, jwtSvc *JWTService) *SessionService {
	return &SessionService{
		store: newRedisStore(redisClient),
		jwt:   jwtSvc,
	}
}

// Issue signs a session for userID. The role is stored in canonical form.
func (s *SessionService) Issue(ctx context.Context, userID uuid.UUID, role string) (string, error) {
	canonical, ok := rbac.Normalize(role)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	token, err := s.jwt.GenerateToken(ctx, userID, string(canonical))
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return token, nil
}

// Validate checks signature, expiry and revocation.
func (s *SessionService) Validate(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwt.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.isRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("checking session revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Revoke invalidates token for the rest of its lifetime. Revoking an
// expired or already revoked token is a no-op.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	claims, err := s.jwt.ValidateToken(ctx, token)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}

	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.store.revoke(ctx, claims.TokenID, claims.UserID.String(), ttl); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}

	logging.Info("session revoked", "user_id", claims.UserID, "jti", claims.TokenID)
	return nil
}

func (s *SessionService) Ping(ctx context.Context) error {
	return s.store.ping(ctx)
}
