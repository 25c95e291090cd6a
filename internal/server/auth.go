package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// VerifyConfig configures bearer token verification.
// Secret is the HS256 key. AllowedIssuer and AllowedAudience are optional.
type VerifyConfig struct {
	Secret          []byte
	RequireJTI      bool
	AllowedIssuer   string
	AllowedAudience string
	ClockSkew       time.Duration
}

// ClaimsKey is the gin context key holding verified jwt.MapClaims.
const ClaimsKey = "jwt_claims"

// JWTMiddleware enforces an HS256 bearer token.
func JWTMiddleware(cfg VerifyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.Secret) == 0 {
			abort(c, http.StatusInternalServerError, "jwt secret not configured")
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			abort(c, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		tokStr := strings.TrimSpace(auth[len("Bearer "):])
		tok, err := jwt.Parse(tokStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return cfg.Secret, nil
		}, jwt.WithLeeway(cfg.ClockSkew))
		if err != nil || !tok.Valid {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid token claims")
			return
		}
		if err := validateClaims(claims, cfg); err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// validateClaims covers what jwt.Parse leaves to the caller. Expiry and
// not-before are already checked by the parser.
func validateClaims(c jwt.MapClaims, cfg VerifyConfig) error {
	if cfg.RequireJTI {
		if _, ok := c["jti"]; !ok {
			return errors.New("token missing jti")
		}
	}
	if cfg.AllowedIssuer != "" {
		if iss, _ := c["iss"].(string); iss != cfg.AllowedIssuer {
			return errors.New("invalid iss")
		}
	}
	if cfg.AllowedAudience != "" {
		switch v := c["aud"].(type) {
		case string:
			if v != cfg.AllowedAudience {
				return errors.New("invalid aud")
			}
		case []interface{}:
			ok := false
			for _, it := range v {
				if s, _ := it.(string); s == cfg.AllowedAudience {
					ok = true
					break
				}
			}
			if !ok {
				return errors.New("invalid aud")
			}
		default:
			return errors.New("invalid aud")
		}
	}
	return nil
}

// IssueToken signs an HS256 token for sub valid for ttl. It exists for
// operators and tests that need a token for a local server.
func IssueToken(secret []byte, sub string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
