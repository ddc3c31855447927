package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/reliefdesk/reliefdesk-backend/internal/access"
)

const (
	DevRoleHeader = "X-Dev-Role"
	DevUserHeader = "X-Dev-User"

	devUserID = "dev-user"
)

var ErrInvalidAuthHeader = errors.New("invalid authorization header format")

// IdentityProvider resolves the caller of an HTTP request. A request with
// no credentials yields an unauthenticated identity and a nil error.
type IdentityProvider interface {
	Identity(r *http.Request) (access.Identity, error)
}

// SessionProvider reads bearer session tokens.
type SessionProvider struct {
	sessions *SessionService
}

func NewSessionProvider(sessions *SessionService) *SessionProvider {
	return &SessionProvider{sessions: sessions}
}

func (p *SessionProvider) Identity(r *http.Request) (access.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return access.Identity{}, nil
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return access.Identity{}, ErrInvalidAuthHeader
	}

	claims, err := p.sessions.Validate(r.Context(), strings.TrimPrefix(authHeader, bearerPrefix))
	if err != nil {
		return access.Identity{}, err
	}

	return access.Identity{
		IsAuthenticated: true,
		Role:            claims.Role,
		UserID:          claims.UserID.String(),
	}, nil
}

// DevProvider trusts a configured role, or the X-Dev-Role header when set.
// It exists for local development and tests only; identities it produces
// are marked Dev.
type DevProvider struct {
	mu   sync.RWMutex
	role string
}

func NewDevProvider(role string) *DevProvider {
	return &DevProvider{role: role}
}

// SetRole changes the override role. An empty role signs the caller out.
func (p *DevProvider) SetRole(role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.role = role
}

func (p *DevProvider) Role() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.role
}

func (p *DevProvider) Identity(r *http.Request) (access.Identity, error) {
	role := strings.TrimSpace(r.Header.Get(DevRoleHeader))
	if role == "" {
		role = p.Role()
	}
	if role == "" {
		return access.Identity{}, nil
	}

	userID := r.Header.Get(DevUserHeader)
	if userID == "" {
		userID = devUserID
	}

	return access.Identity{
		IsAuthenticated: true,
		Role:            role,
		UserID:          userID,
		Dev:             true,
	}, nil
}
