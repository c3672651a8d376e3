package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// devUserID is the fallback actor when no identity reaches the service in development
const devUserID = "00000000-0000-0000-0000-000000000001"

// DevelopmentAuthMiddleware resolves the acting user without a mesh in front of the service.
// The X-User-ID header wins over the fixed development user; malformed ids are ignored.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			if header := c.GetHeader("X-User-ID"); header != "" {
				if _, err := uuid.Parse(header); err == nil {
					userID = header
				}
			}
		}
		if userID == "" {
			userID = devUserID
		}

		// Set both camelCase and snake_case for compatibility with RBAC middleware
		c.Set("userId", userID)
		c.Set("user_id", userID)
		c.Set("staff_id", userID) // RBAC middleware checks staff_id first
		c.Next()
	}
}

// RequestID propagates X-Request-ID, generating one when the caller did not send it
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request.Header.Set("X-Request-ID", requestID)
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}
