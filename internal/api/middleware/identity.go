package middleware

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/0xhank/casper/internal/infrastructure/config"
)

// EntityKey is the gin context key carrying the caller's entity id
const EntityKey = "entityID"

// claims is the subset of bearer-token claims the service inspects. Token
// signatures are the identity provider's concern; the service checks the
// audience, issuer, and expiry it is configured for.
type claims struct {
	Subject  string      `json:"sub"`
	Issuer   string      `json:"iss"`
	Audience audienceSet `json:"aud"`
	Expiry   int64       `json:"exp"`
}

// audienceSet accepts both string and array forms of the aud claim
type audienceSet []string

func (a *audienceSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := sonic.Unmarshal(data, &single); err == nil {
		*a = audienceSet{single}
		return nil
	}
	var many []string
	if err := sonic.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = audienceSet(many)
	return nil
}

func (a audienceSet) contains(audience string) bool {
	for _, v := range a {
		if v == audience {
			return true
		}
	}
	return false
}

// Identity resolves the caller's entity id. When auth is disabled every
// caller maps to the fallback entity. When enabled, a bearer token with the
// configured audience and issuer is required and its subject becomes the
// entity id.
func Identity(cfg config.AuthConfig, fallbackEntity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Set(EntityKey, fallbackEntity)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		parsed, err := parseClaims(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "malformed bearer token"})
			c.Abort()
			return
		}

		switch {
		case parsed.Expiry > 0 && time.Now().Unix() >= parsed.Expiry:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
		case cfg.Issuer != "" && parsed.Issuer != cfg.Issuer:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown issuer"})
		case cfg.Audience != "" && !parsed.Audience.contains(cfg.Audience):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong audience"})
		case parsed.Subject == "":
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
		default:
			c.Set(EntityKey, parsed.Subject)
			c.Next()
			return
		}
		c.Abort()
	}
}

// Entity returns the entity id set by the Identity middleware
func Entity(c *gin.Context) string {
	return c.GetString(EntityKey)
}

func parseClaims(token string) (*claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, base64.CorruptInputError(0)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var parsed claims
	if err := sonic.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}
