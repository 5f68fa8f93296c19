package validator

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoAuthHeader      = errors.New("Authorization header is missing")
	ErrInvalidAuthHeader = errors.New("Authorization header is malformed")
	ErrInvalidToken      = errors.New("access token is invalid")
	ErrWritesDisabled    = errors.New("write endpoints are disabled")
)

// GetTokenFromRequest extracts a token from an Authorization: Bearer <token> header
func GetTokenFromRequest(req *http.Request) (string, error) {
	authHdr := req.Header.Get("Authorization")
	// Check for the Authorization header.
	if authHdr == "" {
		return "", ErrNoAuthHeader
	}
	// We expect a header value of the form "Bearer <token>" (RFC 6750).
	prefix := "Bearer "
	if !strings.HasPrefix(authHdr, prefix) {
		return "", ErrInvalidAuthHeader
	}
	return strings.TrimPrefix(authHdr, prefix), nil
}

// RequireToken only lets requests through that carry expected as bearer
// token. With an empty expected token every request is refused.
func RequireToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrWritesDisabled.Error()})
			return
		}
		token, err := GetTokenFromRequest(c.Request)
		if err == nil && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			err = ErrInvalidToken
		}
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("rejected write request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
