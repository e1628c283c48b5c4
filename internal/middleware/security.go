package middleware

import "github.com/gin-gonic/gin"

// contentSecurityPolicy allows same-origin resources plus the uploaded chat
// attachments the API serves itself under /uploads.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' data:"

// SecurityHeaders hardens every response of this JSON-and-uploads API:
// no framing, no MIME sniffing, no referrer leakage, HTTPS pinned.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", contentSecurityPolicy)
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}
