package api

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret []byte
	jwtMu     sync.Mutex
)

// SetJWTSecret installs the shared secret used to verify member tokens.
func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecret = []byte(secret)
}

func getJWTSecret() []byte {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	if len(jwtSecret) == 0 {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			panic("JWT_SECRET must be set")
		}
		jwtSecret = []byte(secret)
	}
	return jwtSecret
}

// CORSMiddleware handles cross-origin requests.
func CORSMiddleware() gin.HandlerFunc {
	allowedOrigins := loadAllowedOrigins()
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		if origin != "" {
			if _, ok := allowedOrigins[origin]; ok {
				allowOrigin = origin
			}
		}

		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			if origin != "" && allowOrigin == "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware attaches an X-Request-ID to every request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// GetRequestID returns the request id set by RequestIDMiddleware.
func GetRequestID(c *gin.Context) string {
	if ridAny, ok := c.Get("request_id"); ok {
		if rid, ok := ridAny.(string); ok && rid != "" {
			return rid
		}
	}
	return c.GetHeader("X-Request-ID")
}

// MemberAuthMiddleware verifies the bearer token issued by the identity
// collaborator and extracts the authenticated member id. The core trusts
// that id without re-validating identity.
func MemberAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization format", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return getJWTSecret(), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}
		memberID, ok := memberIDFromClaims(claims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token carries no member id", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}
		c.Set("member_id", memberID)
		c.Next()
	}
}

func memberIDFromClaims(claims jwt.MapClaims) (int64, bool) {
	if v, ok := claims["member_id"].(float64); ok {
		return int64(v), true
	}
	// Identity services commonly put the member id in the subject claim.
	if sub, ok := claims["sub"].(string); ok {
		if id, err := strconv.ParseInt(sub, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// GetMemberID returns the authenticated member id set by the auth middleware.
func GetMemberID(c *gin.Context) (int64, bool) {
	v, ok := c.Get("member_id")
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func loadAllowedOrigins() map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		allowed[origin] = struct{}{}
	}
	return allowed
}

// MetricsMiddleware records request metrics.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", c.Writer.Status())
		method := c.Request.Method

		if path == "" {
			path = "unknown"
		}

		RequestTotal.WithLabelValues(method, path, status).Inc()
		RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	}
}
