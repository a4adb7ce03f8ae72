package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/infrastructure/auth"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: expiration,
		Issuer:                "test-issuer",
	})
}

func newTestToken(t *testing.T, svc *auth.JWTService, role string) (string, auth.GenerateTokenInput) {
	t.Helper()
	input := auth.GenerateTokenInput{
		UserID:   uuid.New(),
		Username: "ops",
		Role:     role,
	}
	token, _, err := svc.GenerateAccessToken(input)
	require.NoError(t, err)
	return token, input
}

func serveWithAuth(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	token, input := newTestToken(t, svc, auth.RoleAdmin)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, input.UserID.String(), claims.UserID)
		assert.Equal(t, input.UserID.String(), GetJWTUserID(c))
		assert.Equal(t, auth.RoleAdmin, GetJWTRole(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rec := serveWithAuth(router, "/test", BearerPrefix+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	expired, _ := newTestToken(t, newTestJWTService(-time.Minute), auth.RoleAdmin)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{name: "missing header", header: "", wantCode: "ERR_UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantCode: "ERR_UNAUTHORIZED"},
		{name: "empty token", header: "Bearer ", wantCode: "ERR_UNAUTHORIZED"},
		{name: "garbage token", header: "Bearer not-a-jwt", wantCode: "ERR_UNAUTHORIZED"},
		{name: "expired token", header: BearerPrefix + expired, wantCode: "ERR_TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(JWTAuthMiddleware(svc))
			router.GET("/test", func(c *gin.Context) {
				t.Fatal("handler must not run")
			})

			rec := serveWithAuth(router, "/test", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rec := serveWithAuth(router, "/api/v1/health", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	adminToken, _ := newTestToken(t, svc, auth.RoleAdmin)
	viewerToken, _ := newTestToken(t, svc, "viewer")

	router := gin.New()
	router.GET("/open", RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	protected := router.Group("/")
	protected.Use(JWTAuthMiddleware(svc), RequireRole(auth.RoleAdmin))
	protected.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serveWithAuth(router, "/admin", BearerPrefix+adminToken).Code)

	rec := serveWithAuth(router, "/admin", BearerPrefix+viewerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ERR_FORBIDDEN", errorCode(t, rec))

	rec = serveWithAuth(router, "/open", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
