package api

import (
	"slices"

	"leadgate/models"
	"leadgate/services/identity"
)

// Decision is the outcome of evaluating a route guard.
type Decision int

const (
	// DecisionAllow renders the protected route.
	DecisionAllow Decision = iota
	// DecisionWait renders a neutral waiting response. Issued while the
	// initial session check is still resolving; never a redirect.
	DecisionWait
	// DecisionRedirectLogin sends the visitor to the login entry point.
	DecisionRedirectLogin
	// DecisionRedirectFallback sends an authenticated visitor whose role
	// is not in the allowed set to the configured fallback path.
	DecisionRedirectFallback
	// DecisionFallback renders the supplied fallback view instead of
	// redirecting on a role mismatch.
	DecisionFallback
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionWait:
		return "wait"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectFallback:
		return "redirect_fallback"
	case DecisionFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// EvaluateGuard decides whether the current auth state may pass a guard
// restricted to allowedRoles (empty means any authenticated user). The
// loading check always runs first so a still-resolving session is never
// redirected. hasFallback selects rendering a fallback view over a
// redirect on role mismatch.
func EvaluateGuard(state identity.State, allowedRoles []models.Role, hasFallback bool) Decision {
	if state.Loading {
		return DecisionWait
	}
	if state.User == nil {
		return DecisionRedirectLogin
	}
	if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, state.Role()) {
		if hasFallback {
			return DecisionFallback
		}
		return DecisionRedirectFallback
	}
	return DecisionAllow
}
