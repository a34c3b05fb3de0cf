package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropinbox/internal/config"
	"dropinbox/internal/domain"
	"dropinbox/internal/logging"
	"dropinbox/internal/redisstore"
)

type stubProvider struct {
	session   *domain.Session
	mails     []domain.Message
	err       error
	sessionID string
	listCalls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) CreateMailbox(ctx context.Context) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubProvider) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	s.listCalls++
	s.sessionID = sessionID
	if s.err != nil {
		return nil, s.err
	}
	return s.mails, nil
}

func newRouter(prov *stubProvider, limiter RateLimiter) http.Handler {
	return New(config.Default(), prov, limiter, logging.Discard()).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEmail(t *testing.T) {
	prov := &stubProvider{session: &domain.Session{SessionID: "sid", Address: "box@dropmail.me", ExpiresAt: 1700000000000}}

	rec := do(t, newRouter(prov, nil), http.MethodPost, "/api/generateEmail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"generatedEmail":"box@dropmail.me","generatedSessionID":"sid","expiration":1700000000000}`, rec.Body.String())
}

func TestGenerateEmail_ProviderError(t *testing.T) {
	prov := &stubProvider{err: domain.NewProviderError("create mailbox", errors.New("down"))}

	rec := do(t, newRouter(prov, nil), http.MethodPost, "/api/generateEmail", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestGenerateEmail_LogsProviderName(t *testing.T) {
	log, hook := test.NewNullLogger()
	prov := &stubProvider{err: domain.NewProviderError("create mailbox", errors.New("down"))}
	h := New(config.Default(), prov, nil, log).Router()

	do(t, h, http.MethodPost, "/api/generateEmail", "")

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "failed to create mailbox" {
			found = true
			assert.Equal(t, "stub", e.Data["provider"])
		}
	}
	assert.True(t, found)
}

func TestForwarding_MethodNotAllowed(t *testing.T) {
	h := newRouter(&stubProvider{}, nil)

	for _, path := range []string{"/api/generateEmail", "/api/fetchEmails"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rec := do(t, h, method, path, "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", method, path)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			assert.JSONEq(t, `{"error":"Method Not Allowed"}`, rec.Body.String())
		}
	}
}

func TestFetchEmails(t *testing.T) {
	prov := &stubProvider{mails: []domain.Message{
		{Sender: "a@example.com", Subject: "Hi", Body: "hello", Size: 42},
	}}

	rec := do(t, newRouter(prov, nil), http.MethodPost, "/api/fetchEmails", `{"sessionID":"sid"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sid", prov.sessionID)
	assert.JSONEq(t, `{"mails":[{"fromAddr":"a@example.com","headerSubject":"Hi","text":"hello","rawSize":42}]}`, rec.Body.String())
}

func TestFetchEmails_EmptyMailbox(t *testing.T) {
	rec := do(t, newRouter(&stubProvider{}, nil), http.MethodPost, "/api/fetchEmails", `{"sessionID":"sid"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mails":[]}`, rec.Body.String())
}

func TestFetchEmails_NoSessionID(t *testing.T) {
	prov := &stubProvider{}
	h := newRouter(prov, nil)

	for _, body := range []string{"", `{}`, `{"sessionID":""}`} {
		rec := do(t, h, http.MethodPost, "/api/fetchEmails", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"mails":[]}`, rec.Body.String())
	}
	assert.Zero(t, prov.listCalls)
}

func TestFetchEmails_BadBody(t *testing.T) {
	rec := do(t, newRouter(&stubProvider{}, nil), http.MethodPost, "/api/fetchEmails", `{"sessionID":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchEmails_ProviderError(t *testing.T) {
	prov := &stubProvider{err: domain.NewProviderError("list messages", errors.New("boom"))}

	rec := do(t, newRouter(prov, nil), http.MethodPost, "/api/fetchEmails", `{"sessionID":"sid"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newRouter(&stubProvider{}, nil)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/readyz", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(&stubProvider{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/fetchEmails", nil)
	req.Header.Set("Origin", "https://inbox.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := redisstore.New("redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Default()
	cfg.RateLimitCreatePerMin = 2
	prov := &stubProvider{session: &domain.Session{SessionID: "sid", Address: "a@b", ExpiresAt: 1}}
	h := New(cfg, prov, store, logging.Discard()).Router()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/generateEmail", "").Code)
	}
	rec := do(t, h, http.MethodPost, "/api/generateEmail", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
}

type failingLimiter struct{}

func (failingLimiter) RateLimit(context.Context, string, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	prov := &stubProvider{session: &domain.Session{SessionID: "sid", Address: "a@b", ExpiresAt: 1}}
	rec := do(t, newRouter(prov, failingLimiter{}), http.MethodPost, "/api/generateEmail", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}
