package strategy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	t.Parallel()
	newHandler := func(t *testing.T, c *Config, sess Session) (http.HandlerFunc, *Strategy, *recorder) {
		t.Helper()
		s := testStrategy(t, c)
		rec := &recorder{}
		h := Handler(context.Background(), s,
			func(*http.Request) Session { return sess },
			func(w http.ResponseWriter, req *http.Request, user interface{}, info map[string]interface{}) {
				rec.user = user
				w.WriteHeader(http.StatusOK)
			},
			func(w http.ResponseWriter, req *http.Request, message string, statusCode int) {
				rec.failMessage, rec.failStatus = message, statusCode
				w.WriteHeader(statusCode)
			},
			func(w http.ResponseWriter, req *http.Request, err error) {
				rec.err = err
				w.WriteHeader(http.StatusInternalServerError)
			},
		)
		return h, s, rec
	}

	t.Run("redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		sess := NewMemorySession()
		h, _, _ := newHandler(t, &Config{}, sess)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		require.Equal(http.StatusFound, w.Code)
		assert.Contains(w.Header().Get("Location"), "/authorize?")
		assert.Equal(1, sess.Len())
	})
	t.Run("success", func(t *testing.T) {
		require := require.New(t)
		sess := NewMemorySession()
		client := &TestClient{Tokens: testTokens(t, "atok")}
		h, s, rec := newHandler(t, &Config{Client: client}, sess)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		flow := testFlowState(t, s, sess)

		w = httptest.NewRecorder()
		params := url.Values{"code": {"authcode"}, "state": {flow.State}}
		h(w, httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil))
		require.Equal(http.StatusOK, w.Code)
		require.Equal("alice", rec.user)
	})
	t.Run("fail-default-status", func(t *testing.T) {
		require := require.New(t)
		sess := NewMemorySession()
		h, s, rec := newHandler(t, &Config{}, sess)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		flow := testFlowState(t, s, sess)

		w = httptest.NewRecorder()
		params := url.Values{"error": {"login_required"}, "state": {flow.State}}
		h(w, httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil))
		require.Equal(http.StatusUnauthorized, w.Code)
		require.Equal("login_required", rec.failMessage)
	})
	t.Run("error", func(t *testing.T) {
		require := require.New(t)
		sess := NewMemorySession()
		client := &TestClient{ExchangeErr: errors.New("invalid_grant")}
		h, s, rec := newHandler(t, &Config{Client: client}, sess)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		flow := testFlowState(t, s, sess)

		w = httptest.NewRecorder()
		params := url.Values{"code": {"authcode"}, "state": {flow.State}}
		h(w, httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil))
		require.Equal(http.StatusInternalServerError, w.Code)
		require.Error(rec.err)
	})
	t.Run("nil-session-fn", func(t *testing.T) {
		require := require.New(t)
		s := testStrategy(t, &Config{})
		var gotErr error
		h := Handler(context.Background(), s, nil,
			nil, nil,
			func(w http.ResponseWriter, req *http.Request, err error) {
				gotErr = err
				w.WriteHeader(http.StatusInternalServerError)
			},
		)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/login", nil))
		require.ErrorIs(gotErr, ErrNoSession)
	})
}

type recorder struct {
	user        interface{}
	failMessage string
	failStatus  int
	err         error
}
