package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	PermissionUpload = "media:upload"
	PermissionDelete = "media:delete"
	PermissionAttach = "media:attach"
)

const principalKey = "auth"

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID      string
	OrgID       *string
	Roles       []string
	Permissions []string
}

func (p *Principal) HasAll(required ...string) bool {
	for _, perm := range required {
		if !slices.Contains(p.Permissions, perm) {
			return false
		}
	}
	return true
}

type claims struct {
	jwt.RegisteredClaims
	OrgID       string   `json:"org_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// KeySource supplies the public keys tokens are checked against.
type KeySource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

type StaticKeys struct {
	Set jwk.Set
}

func (s StaticKeys) KeySet(context.Context) (jwk.Set, error) {
	return s.Set, nil
}

// JWKSClient fetches a remote key set and keeps it refreshed in the background.
type JWKSClient struct {
	url   string
	cache *jwk.Cache
}

func NewJWKSClient(ctx context.Context, url string, cacheTTLSeconds int) (*JWKSClient, error) {
	ttl := time.Duration(cacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(ttl)); err != nil {
		return nil, fmt.Errorf("register JWKS %s: %w", url, err)
	}
	return &JWKSClient{url: url, cache: cache}, nil
}

func (c *JWKSClient) KeySet(ctx context.Context) (jwk.Set, error) {
	set, err := c.cache.Get(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	return set, nil
}

type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
}

func NewVerifier(keys KeySource, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid in header")
		}
		set, err := v.keys.KeySet(ctx)
		if err != nil {
			return nil, err
		}
		key, found := set.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key not found for kid: %s", kid)
		}
		var publicKey any
		if err := key.Raw(&publicKey); err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if c.Subject == "" {
		return nil, errors.New("token missing sub claim")
	}

	p := &Principal{
		UserID:      c.Subject,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
	if c.OrgID != "" {
		orgID := c.OrgID
		p.OrgID = &orgID
	}
	return p, nil
}

func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid authorization header"})
			return
		}

		principal, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func RequirePermissions(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !principal.HasAll(required...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "Insufficient permissions",
				"required": required,
			})
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (*Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := value.(*Principal)
	return p, ok
}
