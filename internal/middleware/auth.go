package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AuthContextKey   = "user_id"
	ClaimsContextKey = "claims"
)

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevoked      = errors.New("session has been revoked")
)

// Claims represents JWT claims. RegisteredClaims.ID carries the token id used
// for revocation.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a token id was revoked at logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTAuth issues and validates session tokens. Tokens are read from the
// session cookie first, then from an "Authorization: Bearer" header.
type JWTAuth struct {
	secret     []byte
	cookieName string
	revocation RevocationChecker
	now        func() time.Time
}

// NewJWTAuth creates a JWT authenticator. revocation may be nil.
func NewJWTAuth(secret, cookieName string, revocation RevocationChecker) *JWTAuth {
	return &JWTAuth{
		secret:     []byte(secret),
		cookieName: cookieName,
		revocation: revocation,
		now:        time.Now,
	}
}

// CookieName returns the name of the session cookie
func (a *JWTAuth) CookieName() string {
	return a.cookieName
}

// GenerateToken generates a signed token for a user
func (a *JWTAuth) GenerateToken(userID int64, username string, expiresIn time.Duration) (string, *Claims, error) {
	now := a.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates a token string and returns its claims
func (a *JWTAuth) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (a *JWTAuth) tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Authenticate extracts and validates the session of a request
func (a *JWTAuth) Authenticate(c *gin.Context) (*Claims, error) {
	tokenString := a.tokenFromRequest(c)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims, err := a.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	if a.revocation != nil && claims.ID != "" {
		revoked, err := a.revocation.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid session
func (a *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.Authenticate(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the session when present and valid, and lets the
// request through either way
func (a *JWTAuth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := a.Authenticate(c); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(AuthContextKey, claims.UserID)
	c.Set(ClaimsContextKey, claims)
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(AuthContextKey)
	if !exists {
		return 0, false
	}

	id, ok := userID.(int64)
	return id, ok
}

// GetClaims retrieves the session claims from the context
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ClaimsContextKey)
	if !exists {
		return nil, false
	}

	claims, ok := v.(*Claims)
	return claims, ok
}
