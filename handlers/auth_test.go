package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgate/api"
	"leadgate/handlers"
	"leadgate/models"
	"leadgate/services/accounts"
	"leadgate/services/adminauth"
	"leadgate/services/credentials"
	"leadgate/services/ratelimit"
	"leadgate/services/sessions"
)

const testPassword = "correct-horse-battery"

type authFixture struct {
	handler  *handlers.AuthHandler
	auth     *adminauth.Service
	sessions *sessions.Service
	accounts *accounts.Service
	verifier *credentials.Verifier
}

// setupAuthHandler wires the handler over real services backed by a temp
// directory, with the admin password set to testPassword.
func setupAuthHandler(t *testing.T) *authFixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	verifier := credentials.NewVerifier()
	hash, err := verifier.Hash(testPassword)
	require.NoError(t, err)

	accountsSvc, err := accounts.NewService(dir, hash, verifier, logger)
	require.NoError(t, err)

	limiter, err := ratelimit.NewService(dir, 5, 15*time.Minute, 15*time.Minute)
	require.NoError(t, err)

	sessionsSvc, err := sessions.NewService(dir, []byte("test-signing-key"), time.Hour)
	require.NoError(t, err)

	authSvc := adminauth.NewService(limiter, verifier, sessionsSvc, accountsSvc)

	return &authFixture{
		handler:  handlers.NewAuthHandler(authSvc, sessionsSvc, accountsSvc, verifier),
		auth:     authSvc,
		sessions: sessionsSvc,
		accounts: accountsSvc,
		verifier: verifier,
	}
}

func doLogin(f *authFixture, password, remoteAddr string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(handlers.LoginRequest{Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	f.handler.Login(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	f := setupAuthHandler(t)

	rec := doLogin(f, testPassword, "10.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, string(models.RoleAdmin), resp.Role)

	// The issued token is immediately usable.
	session, err := f.sessions.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, session.Role)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == api.SessionCookieName && c.Value == resp.Token {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "expected session cookie to be set")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setupAuthHandler(t)

	rec := doLogin(f, "not-the-password", "10.0.0.1:40000")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid password", resp["error"])
	assert.Equal(t, adminauth.StateLoggedOut, f.auth.Status().State)
}

func TestLogin_MalformedBody(t *testing.T) {
	f := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	f.handler.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	f := setupAuthHandler(t)

	for i := 0; i < 5; i++ {
		rec := doLogin(f, "wrong", "10.0.0.1:40000")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	// Locked out now: even the correct password is rejected before
	// verification.
	rec := doLogin(f, testPassword, "10.0.0.1:40000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	retryAfterMs, ok := resp["retryAfterMs"].(float64)
	require.True(t, ok, "expected retryAfterMs in response")
	assert.Greater(t, retryAfterMs, float64(0))

	// The lockout keys on the client address, so another client is
	// unaffected.
	other := doLogin(f, testPassword, "10.0.0.2:40000")
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	f := setupAuthHandler(t)

	rec := doLogin(f, testPassword, "10.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	logout := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		out := httptest.NewRecorder()
		f.handler.Logout(out, req)
		return out
	}

	require.Equal(t, http.StatusOK, logout().Code)
	_, err := f.sessions.Validate(resp.Token)
	assert.Error(t, err, "revoked token must no longer validate")

	// A second logout with the same dead token is still a success.
	assert.Equal(t, http.StatusOK, logout().Code)
	assert.Equal(t, adminauth.StateLoggedOut, f.auth.Status().State)
}

func TestMe(t *testing.T) {
	f := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	f.handler.Me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := doLogin(f, testPassword, "10.0.0.1:40000")
	require.Equal(t, http.StatusOK, login.Code)
	var loginResp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(login.Body).Decode(&loginResp))

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec = httptest.NewRecorder()
	f.handler.Me(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, string(models.RoleAdmin), me["role"])
	assert.Equal(t, false, me["generatedPassword"])
}

func TestRefresh_ReplacesSession(t *testing.T) {
	f := setupAuthHandler(t)

	login := doLogin(f, testPassword, "10.0.0.1:40000")
	require.Equal(t, http.StatusOK, login.Code)
	var loginResp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(login.Body).Decode(&loginResp))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec := httptest.NewRecorder()
	f.handler.Refresh(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed handlers.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&refreshed))
	assert.NotEqual(t, loginResp.Token, refreshed.Token)

	_, err := f.sessions.Validate(loginResp.Token)
	assert.Error(t, err, "old token must be revoked by refresh")
	_, err = f.sessions.Validate(refreshed.Token)
	assert.NoError(t, err)
}

func TestStatus_ReflectsStateMachine(t *testing.T) {
	f := setupAuthHandler(t)

	status := func() handlers.StatusResponse {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
		rec := httptest.NewRecorder()
		f.handler.Status(rec, req)
		var resp handlers.StatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	assert.Equal(t, "logged_out", status().State)

	doLogin(f, testPassword, "10.0.0.1:40000")
	assert.Equal(t, "logged_in", status().State)

	f2 := setupAuthHandler(t)
	for i := 0; i < 6; i++ {
		doLogin(f2, "wrong", "10.0.0.1:40000")
	}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	rec := httptest.NewRecorder()
	f2.handler.Status(rec, req)
	var locked handlers.StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&locked))
	assert.Equal(t, "locked_out", locked.State)
	assert.Greater(t, locked.LockoutRemainingMs, int64(0))
}

func TestChangePassword(t *testing.T) {
	f := setupAuthHandler(t)

	change := func(current, next string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(handlers.ChangePasswordRequest{
			CurrentPassword: current,
			NewPassword:     next,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/admin/password", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		f.handler.ChangePassword(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, change("wrong-current", "new-password-1").Code)
	assert.Equal(t, http.StatusBadRequest, change(testPassword, "short").Code)

	require.Equal(t, http.StatusOK, change(testPassword, "new-password-1").Code)
	assert.True(t, f.verifier.Verify("new-password-1", f.accounts.PasswordHash()))
	assert.False(t, f.verifier.Verify(testPassword, f.accounts.PasswordHash()))

	rec := doLogin(f, "new-password-1", "10.0.0.1:40000")
	assert.Equal(t, http.StatusOK, rec.Code)
}
