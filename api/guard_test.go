package api

import (
	"testing"

	"leadgate/models"
	"leadgate/services/identity"
)

func loggedInState(role models.Role) identity.State {
	return identity.State{
		User:    &models.User{ID: "u1", Email: "user@example.com"},
		Profile: &models.UserProfile{ID: "u1", Role: role},
	}
}

func TestEvaluateGuard_LoadingNeverRedirects(t *testing.T) {
	// The loading check precedes every authorization decision,
	// regardless of what the rest of the state looks like.
	states := []identity.State{
		{Loading: true},
		{Loading: true, User: &models.User{ID: "u1"}},
	}
	for _, state := range states {
		if d := EvaluateGuard(state, []models.Role{models.RoleAdmin}, false); d != DecisionWait {
			t.Errorf("expected wait while loading, got %v", d)
		}
	}
}

func TestEvaluateGuard_NoUserRedirectsToLogin(t *testing.T) {
	if d := EvaluateGuard(identity.State{}, nil, false); d != DecisionRedirectLogin {
		t.Errorf("expected redirect to login, got %v", d)
	}
}

func TestEvaluateGuard_AllowsAuthenticatedUser(t *testing.T) {
	if d := EvaluateGuard(loggedInState(models.RoleUser), nil, false); d != DecisionAllow {
		t.Errorf("expected allow, got %v", d)
	}
}

func TestEvaluateGuard_RoleMismatchRedirectsToFallback(t *testing.T) {
	d := EvaluateGuard(loggedInState(models.RoleUser), []models.Role{models.RoleAdmin}, false)
	if d != DecisionRedirectFallback {
		t.Errorf("expected fallback redirect for disallowed role, got %v", d)
	}
}

func TestEvaluateGuard_RoleMismatchPrefersFallbackView(t *testing.T) {
	d := EvaluateGuard(loggedInState(models.RoleUser), []models.Role{models.RoleAdmin}, true)
	if d != DecisionFallback {
		t.Errorf("expected fallback view for disallowed role, got %v", d)
	}
}

func TestEvaluateGuard_AllowsMatchingRole(t *testing.T) {
	d := EvaluateGuard(loggedInState(models.RoleAdmin), []models.Role{models.RoleAdmin}, false)
	if d != DecisionAllow {
		t.Errorf("expected allow for matching role, got %v", d)
	}
}
