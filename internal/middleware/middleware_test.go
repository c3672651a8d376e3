package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant":  GetTenantID(c),
			"user":    c.GetString("user_id"),
			"staff":   c.GetString("staff_id"),
			"request": c.GetString("request_id"),
		})
	})
	return router
}

func TestTenantMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantTenant string
	}{
		{"vendor header", map[string]string{"X-Vendor-ID": "vendor-1"}, http.StatusOK, "vendor-1"},
		{"legacy tenant header", map[string]string{"X-Tenant-ID": "tenant-1"}, http.StatusOK, "tenant-1"},
		{"vendor header wins", map[string]string{"X-Vendor-ID": "vendor-1", "X-Tenant-ID": "tenant-1"}, http.StatusOK, "vendor-1"},
		{"padded header is trimmed", map[string]string{"X-Tenant-ID": "  tenant-1 "}, http.StatusOK, "tenant-1"},
		{"missing", nil, http.StatusUnauthorized, ""},
		{"blank", map[string]string{"X-Tenant-ID": "   "}, http.StatusUnauthorized, ""},
		{"malformed", map[string]string{"X-Tenant-ID": "tenant 1; drop"}, http.StatusBadRequest, ""},
		{"too long", map[string]string{"X-Tenant-ID": strings.Repeat("a", 65)}, http.StatusBadRequest, ""},
	}

	router := newRouter(TenantMiddleware())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			switch tt.wantStatus {
			case http.StatusOK:
				assert.Contains(t, w.Body.String(), `"tenant":"`+tt.wantTenant+`"`)
			case http.StatusUnauthorized:
				assert.Contains(t, w.Body.String(), "TENANT_REQUIRED")
			default:
				assert.Contains(t, w.Body.String(), "INVALID_TENANT")
			}
		})
	}
}

func TestTenantMiddleware_RejectionCarriesRequestID(t *testing.T) {
	router := newRouter(TenantMiddleware())

	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"requestId":"req-42"`)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestTenantMiddleware_KeepsContextTenant(t *testing.T) {
	preset := func(c *gin.Context) {
		c.Set("tenant_id", "from-claims")
		c.Next()
	}
	router := newRouter(preset, TenantMiddleware())

	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Tenant-ID", "from-header")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant":"from-claims"`)
}

func TestDevelopmentAuthMiddleware(t *testing.T) {
	router := newRouter(DevelopmentAuthMiddleware())

	t.Run("header user", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-ID", "6f1c1a52-3a5e-4b47-9f0a-4e1d7a0c2b11")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), `"user":"6f1c1a52-3a5e-4b47-9f0a-4e1d7a0c2b11"`)
		assert.Contains(t, w.Body.String(), `"staff":"6f1c1a52-3a5e-4b47-9f0a-4e1d7a0c2b11"`)
	})

	t.Run("malformed header falls back", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-User-ID", "not-a-uuid")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), `"user":"`+devUserID+`"`)
	})
}

func TestRequestID(t *testing.T) {
	router := newRouter(RequestID())

	t.Run("propagates", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
		assert.Contains(t, w.Body.String(), `"request":"req-123"`)
	})

	t.Run("generates", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get("X-Request-ID"), 36)
	})
}
