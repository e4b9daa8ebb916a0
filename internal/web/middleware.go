package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	appLog "strcal/internal/log"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing a well-formed incoming one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		appLog.Info("http request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(started).Round(time.Millisecond),
		)
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// authMiddleware accepts HTTP Basic credentials or an HS256 bearer token.
// With neither configured, every request passes.
func (s *Server) authMiddleware() gin.HandlerFunc {
	basic := s.basicAuthEnabled()
	secret := []byte(s.cfg.JWTSecret)

	return func(c *gin.Context) {
		if !basic && len(secret) == 0 {
			c.Next()
			return
		}

		if len(secret) > 0 {
			if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
				if err := verifyJWT(token, secret); err == nil {
					c.Next()
					return
				}
			}
		}

		if basic {
			u, p, ok := c.Request.BasicAuth()
			if ok && secureCompare(u, s.cfg.BasicAuth.Username) && secureCompare(p, s.cfg.BasicAuth.Password) {
				c.Next()
				return
			}
			c.Header("WWW-Authenticate", `Basic realm="strcal", charset="UTF-8"`)
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func verifyJWT(tokenStr string, secret []byte) error {
	_, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(5*time.Second))
	return err
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
