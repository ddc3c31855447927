package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type JWTService struct {
	signingKey jwk.Key
	issuer     string
	expiry     time.Duration
}

// TokenClaims are the session claims the service relies on. TokenID is the
// jti used for revocation.
type TokenClaims struct {
	UserID    uuid.UUID
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

func NewJWTService(signingKey []byte, issuer string, expiry time.Duration) (*JWTService, error) {
	key, err := jwk.FromRaw(signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}

	if err := key.Set(jwk.AlgorithmKey, jwa.HS256); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	return &JWTService{
		signingKey: key,
		issuer:     issuer,
		expiry:     expiry,
	}, nil
}

func (s *JWTService) GenerateToken(ctx context.Context, userID uuid.UUID, role string) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(userID.String()).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(now.Add(s.expiry)).
		Claim("user_id", userID.String()).
		Claim("role", role).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.signingKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	parsedToken, err := jwt.Parse([]byte(tokenString), jwt.WithKey(jwa.HS256, s.signingKey), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if err := jwt.Validate(parsedToken); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	userIDStr, ok := claimString(parsedToken, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id claim not found")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id format: %w", err)
	}

	role, ok := claimString(parsedToken, "role")
	if !ok {
		return nil, fmt.Errorf("role claim not found")
	}

	if parsedToken.JwtID() == "" {
		return nil, fmt.Errorf("jti claim not found")
	}

	return &TokenClaims{
		UserID:    userID,
		Role:      role,
		TokenID:   parsedToken.JwtID(),
		ExpiresAt: parsedToken.Expiration(),
	}, nil
}

func claimString(t jwt.Token, name string) (string, bool) {
	v, ok := t.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
