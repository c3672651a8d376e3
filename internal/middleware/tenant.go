package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"catalog-service/internal/models"
	"github.com/gin-gonic/gin"
)

// tenantPattern accepts uuids and slug-style tenant keys
var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// tenantHeaders are consulted in order when IstioAuth did not put a tenant in the context
var tenantHeaders = []string{"X-Vendor-ID", "X-Tenant-ID"}

// TenantMiddleware scopes the request to one tenant. A tenant taken from JWT claims
// wins over headers. Requests without a tenant are rejected, never defaulted.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := resolveTenant(c)
		if tenantID == "" {
			abortTenant(c, http.StatusUnauthorized, "TENANT_REQUIRED", "Tenant context is required. Include X-Vendor-ID or X-Tenant-ID header.")
			return
		}
		if !tenantPattern.MatchString(tenantID) {
			abortTenant(c, http.StatusBadRequest, "INVALID_TENANT", "Tenant ID contains unsupported characters or is too long.")
			return
		}

		// rbac reads tenantId, handlers read tenant_id
		c.Set("tenantId", tenantID)
		c.Set("tenant_id", tenantID)
		c.Set("vendor_id", tenantID)
		c.Next()
	}
}

func resolveTenant(c *gin.Context) string {
	if tid := strings.TrimSpace(c.GetString("tenant_id")); tid != "" {
		return tid
	}
	for _, header := range tenantHeaders {
		if tid := strings.TrimSpace(c.GetHeader(header)); tid != "" {
			return tid
		}
	}
	return ""
}

func abortTenant(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetHeader("X-Request-ID"),
	})
}

// GetTenantID returns the tenant the request was scoped to
func GetTenantID(c *gin.Context) string {
	if tid := c.GetString("tenant_id"); tid != "" {
		return tid
	}
	return c.GetString("tenantId")
}
