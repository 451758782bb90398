package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"leadgate/internal/auth"
	"leadgate/models"
	"leadgate/services/identity"
	"leadgate/services/sessions"
)

// SessionCookieName is the cookie carrying the session token for page
// navigation; API clients use the Authorization header instead.
const SessionCookieName = "leadgate_session"

// GuardOptions configures an authenticated-only route guard.
type GuardOptions struct {
	// AllowedRoles restricts passage to these roles. Empty allows any
	// authenticated user.
	AllowedRoles []models.Role
	// LoginPath is where unauthenticated visitors are sent in redirect
	// mode. Defaults to "/auth".
	LoginPath string
	// RedirectTo is where authenticated visitors with a disallowed role
	// are sent. Defaults to "/dashboard".
	RedirectTo string
	// Fallback, when set, is rendered on a role mismatch instead of
	// redirecting.
	Fallback http.Handler
	// Redirect selects 303 redirects (page routes) over JSON errors
	// (API routes).
	Redirect bool
}

func (o GuardOptions) loginPath() string {
	if o.LoginPath != "" {
		return o.LoginPath
	}
	return "/auth"
}

func (o GuardOptions) redirectTo() string {
	if o.RedirectTo != "" {
		return o.RedirectTo
	}
	return "/dashboard"
}

// RequireUser guards routes behind the end-user identity context. The
// loading check runs before any authorization decision, so a request that
// arrives while the initial session check is still resolving gets a
// neutral waiting response, never a redirect.
func RequireUser(authCtx *identity.Context, opts GuardOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			switch EvaluateGuard(authCtx.State(), opts.AllowedRoles, opts.Fallback != nil) {
			case DecisionWait:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			case DecisionRedirectLogin:
				if opts.Redirect {
					http.Redirect(w, r, opts.loginPath(), http.StatusSeeOther)
					return
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			case DecisionRedirectFallback:
				if opts.Redirect {
					http.Redirect(w, r, opts.redirectTo(), http.StatusSeeOther)
					return
				}
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
			case DecisionFallback:
				opts.Fallback.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// AdminGuardOptions configures the admin-only guard.
type AdminGuardOptions struct {
	// LoginPath is where unauthenticated visitors are sent in redirect
	// mode. Defaults to "/admin/login".
	LoginPath string
	// Redirect selects 303 redirects over JSON errors.
	Redirect bool
}

func (o AdminGuardOptions) loginPath() string {
	if o.LoginPath != "" {
		return o.LoginPath
	}
	return "/admin/login"
}

// RequireAdmin creates middleware that validates the session token and
// requires the admin role. Valid requests proceed with the session and
// role injected into the request context.
func RequireAdmin(sessionsSvc *sessions.Service, opts AdminGuardOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractToken(r)
			if token == "" {
				rejectAdmin(w, r, opts, http.StatusUnauthorized, "authentication required")
				return
			}

			session, err := sessionsSvc.Validate(token)
			if err != nil {
				// Expired, revoked, and tampered tokens all degrade to
				// the same logged-out answer.
				rejectAdmin(w, r, opts, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			if session.Role != models.RoleAdmin {
				rejectAdmin(w, r, opts, http.StatusForbidden, "admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), auth.ContextKeyRole, session.Role)
			ctx = context.WithValue(ctx, auth.ContextKeySession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectAdmin(w http.ResponseWriter, r *http.Request, opts AdminGuardOptions, status int, msg string) {
	if opts.Redirect {
		http.Redirect(w, r, opts.loginPath(), http.StatusSeeOther)
		return
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// ExtractToken extracts the session token from the request.
// Priority: Authorization header > session cookie > ?token= query param
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
