package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

func csrfHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		called := false
		w := httptest.NewRecorder()
		csrfHandler(&called).ServeHTTP(w, httptest.NewRequest(method, "/api/test", nil))

		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.True(t, called, method)
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	called := false
	w := httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = c
		}
	}
	require.NotNil(t, found)
	assert.Len(t, found.Value, 64)
	assert.False(t, found.HttpOnly, "frontend must be able to read the token")
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()

	csrfHandler(&called).ServeHTTP(w, req)

	assert.Empty(t, w.Result().Cookies())
}

func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{"no cookie", "", "token", http.StatusForbidden},
		{"no header", "token", "", http.StatusForbidden},
		{"mismatch", "token-a", "token-b", http.StatusForbidden},
		{"valid", "token", "token", http.StatusOK},
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+" "+tt.name, func(t *testing.T) {
				req := httptest.NewRequest(method, "/api/test", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}
				called := false
				w := httptest.NewRecorder()

				csrfHandler(&called).ServeHTTP(w, req)

				assert.Equal(t, tt.want, w.Code)
				assert.Equal(t, tt.want == http.StatusOK, called)
				if tt.want == http.StatusForbidden {
					var body ErrorResponseBody
					require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
					assert.Equal(t, model.ErrCodeForbidden, body.Code)
				}
			})
		}
	}
}

func TestCSRFMiddleware_BearerRequestsSkipValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	called := false
	w := httptest.NewRecorder()

	csrfHandler(&called).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestCSRFTokenHandler(t *testing.T) {
	t.Run("issues a new token", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.NotEmpty(t, body.Token)
		require.Len(t, w.Result().Cookies(), 1)
		assert.Equal(t, body.Token, w.Result().Cookies()[0].Value)
	})

	t.Run("returns the existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
		w := httptest.NewRecorder()

		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "existing-token", body.Token)
		assert.Empty(t, w.Result().Cookies())
	})
}
