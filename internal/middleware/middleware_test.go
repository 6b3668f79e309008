package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptolearn-backend/internal/config"
	"cryptolearn-backend/internal/logging"
	"cryptolearn-backend/internal/metrics"
	"cryptolearn-backend/internal/models"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers map[uint]*models.User

func (s stubUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("record not found")
}

func newCodec(t *testing.T) *utils.TokenCodec {
	t.Helper()
	codec, err := utils.NewTokenCodec(testSecret, "cryptolearn-test", logging.Discard())
	require.NoError(t, err)
	return codec
}

func newAuthRouter(t *testing.T, users stubUsers) (*gin.Engine, *utils.TokenCodec) {
	t.Helper()
	codec := newCodec(t)
	auth := NewAuthenticator(codec, users, logging.Discard())

	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	r.GET("/admin", auth.RequireAuth(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, codec
}

func doRequest(r http.Handler, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

func TestRequireAuth(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, Username: "alice", Enabled: true, Roles: []models.Role{{Name: models.RoleUser}}},
		2: {ID: 2, Username: "frozen", Enabled: false, Roles: []models.Role{{Name: models.RoleUser}}},
	}
	r, codec := newAuthRouter(t, users)

	valid, err := codec.Issue("alice", 1, time.Minute)
	require.NoError(t, err)
	disabled, err := codec.Issue("frozen", 2, time.Minute)
	require.NoError(t, err)
	ghost, err := codec.Issue("ghost", 99, time.Minute)
	require.NoError(t, err)
	expired, err := codec.Issue("alice", 1, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>"},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "Invalid or expired token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Invalid or expired token"},
		{"deleted account", "Bearer " + ghost, http.StatusUnauthorized, "Invalid or expired token"},
		{"disabled account", "Bearer " + disabled, http.StatusUnauthorized, "Account is disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/me", tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, w))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, Username: "alice", Enabled: true, Roles: []models.Role{{Name: models.RoleUser}}},
		2: {ID: 2, Username: "root", Enabled: true, Roles: []models.Role{{Name: models.RoleAdmin}}},
	}
	r, codec := newAuthRouter(t, users)

	userToken, _ := codec.Issue("alice", 1, time.Minute)
	adminToken, _ := codec.Issue("root", 2, time.Minute)

	w := doRequest(r, http.MethodGet, "/admin", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", errorMessage(t, w))

	w = doRequest(r, http.MethodGet, "/admin", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_WithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "info", "json")

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	doRequest(r, http.MethodGet, "/ok", "")
	doRequest(r, http.MethodGet, "/boom", "")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "/ok", first["path"])
	assert.Equal(t, float64(http.StatusOK), first["status"])
	assert.Equal(t, "ERROR", second["level"])
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logging.Discard()))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := doRequest(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An unexpected error occurred", errorMessage(t, w))
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, http.MethodGet, "/users/1", "")
	doRequest(r, http.MethodGet, "/users/2", "")
	doRequest(r, http.MethodGet, "/nowhere", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/:id", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}
