// Package admin guards back-office routes with the admin session.
//
// Collaborator handlers (challenge CRUD, platform configuration) mount behind
// RequireAdmin and read the acting principal with PrincipalFromContext.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/httputil"
	"greenctf/pkg/platform/validation"
	"greenctf/pkg/requestcontext"
)

// Principal is the authenticated admin attached to a request.
type Principal struct {
	AdminID  int64
	Username string
	Role     string
	Token    string
}

// SessionValidator resolves a session token to a principal.
// Errors are domain errors (unauthenticated, session_expired, account_disabled).
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*Principal, error)
}

// ValidatorFunc adapts a function to SessionValidator.
type ValidatorFunc func(ctx context.Context, token string) (*Principal, error)

func (f ValidatorFunc) ValidateSession(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

type contextKeyPrincipal struct{}

// WithPrincipal attaches the acting admin to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// PrincipalFromContext returns the acting admin, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal{}).(*Principal)
	return p, ok && p != nil
}

// TokenFromRequest reads the session token from the named cookie, falling
// back to an Authorization: Bearer header. Tokens longer than
// validation.MaxTokenLength read as absent.
func TokenFromRequest(r *http.Request, cookieName string) string {
	var token string
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		token = c.Value
	} else if scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		token = strings.TrimSpace(value)
	}
	if len(token) > validation.MaxTokenLength {
		return ""
	}
	return token
}

// RequireAdmin rejects requests without a valid admin session.
func RequireAdmin(v SessionValidator, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
				return
			}

			principal, err := v.ValidateSession(ctx, token)
			if err != nil {
				logger.InfoContext(ctx, "admin session rejected",
					"code", dErrors.CodeOf(err),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequireRole must run after RequireAdmin.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Not authenticated"))
				return
			}
			if !slices.Contains(roles, p.Role) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Insufficient privileges"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
