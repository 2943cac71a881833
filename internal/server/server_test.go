package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dvcrn/helix-auth/internal/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "admin-key"

type fakeManager struct {
	mu       sync.Mutex
	calls    []string
	statuses map[auth.Kind]auth.SlotStatus
}

func newFakeManager() *fakeManager {
	return &fakeManager{statuses: map[auth.Kind]auth.SlotStatus{
		auth.KindApplication: {Kind: "app", HasToken: true, TokenLength: 30},
		auth.KindUser:        {Kind: "user"},
	}}
}

func (f *fakeManager) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeManager) ClientID() string { return "client-id-0123456789" }
func (f *fakeManager) Status(kind auth.Kind) auth.SlotStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[kind]
}
func (f *fakeManager) StartApplicationTokenRefresh(context.Context) { f.record("start app") }
func (f *fakeManager) StartUserTokenRefresh(context.Context)        { f.record("start user") }
func (f *fakeManager) StopApplicationTokenRefresh()                 { f.record("stop app") }
func (f *fakeManager) StopUserTokenRefresh()                        { f.record("stop user") }
func (f *fakeManager) RenewApplicationTokenOnce(context.Context)    { f.record("renew app") }
func (f *fakeManager) RenewUserTokenOnce(context.Context)           { f.record("renew user") }
func (f *fakeManager) SetApplicationToken(token string)             { f.record("set app token " + token) }
func (f *fakeManager) SetUserToken(token string)                    { f.record("set user token " + token) }
func (f *fakeManager) SetClientSecret(_ context.Context, s string) {
	f.record("set client secret " + s)
}
func (f *fakeManager) SetRefreshToken(_ context.Context, s string) {
	f.record("set refresh token " + s)
}

func (f *fakeManager) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestServer(m CredentialManager) *Server {
	return New(zerolog.Nop(), m, testAdminKey)
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

var bearer = map[string]string{"Authorization": "Bearer " + testAdminKey}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(newFakeManager()), http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPassthrough(t *testing.T) {
	rec := do(t, newTestServer(newFakeManager()), http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestAdminMiddleware(t *testing.T) {
	s := newTestServer(newFakeManager())

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "malformed authorization", headers: map[string]string{"Authorization": "Token admin-key"}, want: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"Authorization": "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "bearer", headers: bearer, want: http.StatusOK},
		{name: "lowercase bearer", headers: map[string]string{"Authorization": "bearer " + testAdminKey}, want: http.StatusOK},
		{name: "x-api-key", headers: map[string]string{"X-API-Key": testAdminKey}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/admin/credentials/status", "", tt.headers)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminMiddleware_NotConfigured(t *testing.T) {
	s := New(zerolog.Nop(), newFakeManager(), "")
	rec := do(t, s, http.MethodGet, "/admin/credentials/status", "", bearer)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCredentialsStatus(t *testing.T) {
	rec := do(t, newTestServer(newFakeManager()), http.MethodGet, "/admin/credentials/status", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "client-id-0123456789", resp.ClientID)
	assert.True(t, resp.Application.HasToken)
	assert.Equal(t, 30, resp.Application.TokenLength)
	assert.False(t, resp.User.HasToken)
}

func TestCredentialsStatus_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestServer(newFakeManager()), http.MethodPost, "/admin/credentials/status", "", bearer)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCredentialsUpdate(t *testing.T) {
	m := newFakeManager()
	rec := do(t, newTestServer(m), http.MethodPost, "/admin/credentials",
		`{"appToken":"app-1","refreshToken":"","clientSecret":"secret-2"}`, bearer)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"set app token app-1",
		"set client secret secret-2",
		"set refresh token ",
	}, m.recorded())
	assert.JSONEq(t, `{"status":"success","updated":["appToken","clientSecret","refreshToken"]}`, rec.Body.String())
}

func TestCredentialsUpdate_BadRequests(t *testing.T) {
	s := newTestServer(newFakeManager())

	rec := do(t, s, http.MethodPost, "/admin/credentials", `not json`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/admin/credentials", `{}`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/admin/credentials", "", bearer)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRenewAndRefreshRoutes(t *testing.T) {
	m := newFakeManager()
	s := newTestServer(m)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/admin/credentials/app/renew"},
		{http.MethodPost, "/admin/credentials/user/renew"},
		{http.MethodPost, "/admin/credentials/app/refresh"},
		{http.MethodPost, "/admin/credentials/user/refresh"},
		{http.MethodDelete, "/admin/credentials/app/refresh"},
		{http.MethodDelete, "/admin/credentials/user/refresh"},
	} {
		rec := do(t, s, tc.method, tc.path, "", bearer)
		assert.Equal(t, http.StatusOK, rec.Code, tc.path)
	}

	assert.Equal(t, []string{
		"renew app", "renew user",
		"start app", "start user",
		"stop app", "stop user",
	}, m.recorded())
}

func TestRenew_StaleSlotReportsBadGateway(t *testing.T) {
	m := newFakeManager()
	m.statuses[auth.KindUser] = auth.SlotStatus{Kind: "user", LastError: "token request failed with status 400"}

	rec := do(t, newTestServer(m), http.MethodPost, "/admin/credentials/user/renew", "", bearer)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var status auth.SlotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.LastError, "status 400")
}

func TestRenew_UnknownKind(t *testing.T) {
	m := newFakeManager()
	rec := do(t, newTestServer(m), http.MethodPost, "/admin/credentials/robot/renew", "", bearer)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, m.recorded())
}

func TestServer_WithRealManager(t *testing.T) {
	m, err := auth.New(auth.Config{
		ClientID: "client-id-0123456789",
		Tokens:   auth.Tokens{AppToken: "app-0"},
	})
	require.NoError(t, err)
	defer m.Close()

	s := newTestServer(m)

	rec := do(t, s, http.MethodPost, "/admin/credentials/app/renew", "", bearer)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var status auth.SlotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.LastError, auth.ErrMissingCapability.Error())
	assert.True(t, status.HasToken)
	assert.Equal(t, "app-0", m.ApplicationToken())
}

func TestServer_StopAfterSecretSuppliedIsNotStale(t *testing.T) {
	m, err := auth.New(auth.Config{ClientID: "client-id-0123456789"})
	require.NoError(t, err)
	defer m.Close()

	s := newTestServer(m)

	rec := do(t, s, http.MethodPost, "/admin/credentials/user/refresh", "", bearer)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	m.SetRefreshToken(context.Background(), "r1")

	rec = do(t, s, http.MethodDelete, "/admin/credentials/user/refresh", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var status auth.SlotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Renewable)
	assert.Empty(t, status.LastError)
}
