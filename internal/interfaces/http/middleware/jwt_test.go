package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cclastrib/backend/internal/infrastructure/auth"
	"github.com/cclastrib/backend/internal/infrastructure/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                "test-secret-key-with-enough-length",
		AccessTokenExpiration: time.Hour,
		Issuer:                "fiscal-api",
	}
}

func newJWTTestRouter(t *testing.T, svc *auth.JWTService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	r.GET("/api/v1/admin/tables", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": GetJWTSubject(c), "role": GetJWTRole(c)})
	})
	r.POST("/api/v1/fiscal/classify", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := auth.NewJWTService(testJWTConfig())
	r := newJWTTestRouter(t, svc)

	token, _, err := svc.GenerateToken("admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/tables", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	svc := auth.NewJWTService(testJWTConfig())
	r := newJWTTestRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/tables", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuthMiddleware_MalformedToken(t *testing.T) {
	svc := auth.NewJWTService(testJWTConfig())
	r := newJWTTestRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/tables", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	svc := auth.NewJWTService(testJWTConfig())
	r := newJWTTestRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal/classify", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "classify path must not require a token")
}

func TestRequireAdmin(t *testing.T) {
	svc := auth.NewJWTService(testJWTConfig())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	r.POST("/api/v1/admin/reload", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminToken, _, err := svc.GenerateToken("admin", auth.RoleAdmin)
	require.NoError(t, err)
	viewerToken, _, err := svc.GenerateToken("viewer", auth.RoleViewer)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
