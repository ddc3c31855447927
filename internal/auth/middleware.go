package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
)

type contextKey string

const identityKey contextKey = "identity"

var ErrUnauthenticated = errors.New("authentication required")

// Middleware resolves the caller once per request and stores the identity
// in the request context. Invalid credentials are treated as signed out.
func Middleware(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := provider.Identity(r)
			if err != nil {
				logging.Debug("rejected credentials", "path", r.URL.Path, "error", err)
				id = access.Identity{}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id access.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the stored identity, or an unauthenticated
// one when none was stored.
func IdentityFromContext(ctx context.Context) access.Identity {
	id, _ := ctx.Value(identityKey).(access.Identity)
	return id
}

// Authenticate is the OpenAPI validator hook for BearerAuth operations.
// It relies on Middleware having run first.
func Authenticate(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input.SecuritySchemeName != "BearerAuth" {
		return fmt.Errorf("authentication service missing for %s", input.SecuritySchemeName)
	}

	id := IdentityFromContext(input.RequestValidationInput.Request.Context())
	if !id.IsAuthenticated {
		return ErrUnauthenticated
	}
	return nil
}
