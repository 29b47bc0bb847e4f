package echo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/kerja/auth"
	"go.pilab.hu/kerja/domain"
	"go.pilab.hu/kerja/jobs"
	"go.pilab.hu/kerja/registry"
	"go.pilab.hu/kerja/sessions"
)

// --- Fakes ---

type fakeConn struct {
	handle     string
	code       string
	credential string
	identity   *domain.Identity
}

func (c *fakeConn) RequestCode(context.Context, string) (string, error) {
	return c.handle, nil
}

func (c *fakeConn) CompleteCode(_ context.Context, _, handle, code string) (string, error) {
	if handle != c.handle || code != c.code {
		return "", &domain.ProviderRejection{Reason: "PHONE_CODE_INVALID"}
	}
	return c.credential, nil
}

func (c *fakeConn) FetchIdentity(context.Context) (*domain.Identity, error) {
	if c.identity == nil {
		return nil, &domain.ProviderRejection{Reason: "AUTH_KEY_UNREGISTERED"}
	}
	return c.identity, nil
}

func (c *fakeConn) Close(context.Context) error {
	return nil
}

type fakeProvider struct {
	conns  []*fakeConn
	next   int
	resume map[string]*fakeConn
}

func (p *fakeProvider) Connect(context.Context) (domain.ProviderConn, error) {
	if p.next >= len(p.conns) {
		return nil, errors.New("fakeProvider: no more connections")
	}
	conn := p.conns[p.next]
	p.next++
	return conn, nil
}

func (p *fakeProvider) ConnectWithCredential(_ context.Context, credential string) (domain.ProviderConn, error) {
	conn, ok := p.resume[credential]
	if !ok {
		return nil, errors.New("fakeProvider: unknown credential")
	}
	return conn, nil
}

func newTestServer(t *testing.T, p domain.Provider) *echo.Echo {
	t.Helper()

	reg := registry.New(time.Minute)
	t.Cleanup(func() { _ = reg.Close() })

	store, err := sessions.NewFileStore(filepath.Join(t.TempDir(), "sessions.json"), "")
	require.NoError(t, err)

	e := echo.New()
	api := NewAPI(auth.NewService(reg, store, p), jobs.NewCatalog())
	api.RegisterRoutes(e)

	return e
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestLoginHandlerMissingPhone(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodPost, "/api/login", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid_input", body["error"])
}

func TestLoginHandler(t *testing.T) {
	conn := &fakeConn{handle: "hash-1", code: "12345", credential: "cred-1"}
	e := newTestServer(t, &fakeProvider{conns: []*fakeConn{conn}})

	rec := doJSON(e, http.MethodPost, "/api/login", `{"phone":"+60111222333"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
}

func TestVerifyHandlerWithoutLogin(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodPost, "/api/verify", `{"phone":"+60111222333","code":"12345"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "challenge_not_found", body["error"])
	assert.Equal(t, "login session not found", body["error_description"])
}

func TestLoginVerifyProfileLogoutFlow(t *testing.T) {
	const credential = "provider-session-string"
	loginConn := &fakeConn{handle: "hash-1", code: "12345", credential: credential}
	profileConn := &fakeConn{identity: &domain.Identity{
		ID:        "10042",
		FirstName: "Aisyah",
		LastName:  "Rahman",
		Username:  "aisyahr",
		Phone:     "+60111222333",
	}}
	e := newTestServer(t, &fakeProvider{
		conns:  []*fakeConn{loginConn},
		resume: map[string]*fakeConn{credential: profileConn},
	})

	rec := doJSON(e, http.MethodPost, "/api/login", `{"phone":"+60111222333"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/verify", `{"phone":"+60111222333","code":"12345"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token, _ := body["appToken"].(string)
	require.True(t, strings.HasPrefix(token, "tk_"))

	// The provider credential never appears in any response.
	assert.NotContains(t, rec.Body.String(), credential)

	rec = doJSON(e, http.MethodGet, "/api/profile", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody(t, rec)
	assert.Equal(t, "Aisyah", profile["first_name"])
	assert.Equal(t, "aisyahr", profile["username"])
	assert.NotContains(t, rec.Body.String(), credential)

	rec = doJSON(e, http.MethodPost, "/api/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	// Token is dead after logout.
	rec = doJSON(e, http.MethodGet, "/api/profile", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileHandlerWithoutToken(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileHandlerUnknownToken(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodGet, "/api/profile", "", "tk_bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unauthorized", body["error"])
}

func TestLogoutHandlerAlwaysSucceeds(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	for i := 0; i < 2; i++ {
		rec := doJSON(e, http.MethodPost, "/api/logout", "", "tk_never_issued")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["success"])
	}

	rec := doJSON(e, http.MethodPost, "/api/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobsHandlers(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodGet, "/api/jobs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	rec = doJSON(e, http.MethodGet, "/api/jobs/2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cashier", decodeBody(t, rec)["title"])

	rec = doJSON(e, http.MethodGet, "/api/jobs/99", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/jobs/abc", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})

	rec := doJSON(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
