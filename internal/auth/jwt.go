package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
)

// Claims holds the typed JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates HS256 tokens.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewIssuer returns an Issuer. Tokens expire after ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, nowFunc: time.Now}
}

// GenerateToken creates a signed JWT for the given user.
func (i *Issuer) GenerateToken(userID, role string) (string, error) {
	now := i.nowFunc()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ValidateToken parses and validates a JWT string.
func (i *Issuer) ValidateToken(t string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(t, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.nowFunc))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

const actorKey = "actor"

// ErrMalformedHeader is returned for an Authorization header that is not a
// bearer token.
var ErrMalformedHeader = errors.New("authorization header must be a bearer token")

// GinMiddleware resolves the caller from the Authorization header. A request
// without the header proceeds as a guest; an invalid token is rejected
// with 401.
func (i *Issuer) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(actorKey, orders.Actor{})
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "msg": ErrMalformedHeader.Error()})
			return
		}
		claims, err := i.ValidateToken(strings.TrimSpace(raw))
		if err != nil {
			logger.FromContext(c.Request.Context()).Info("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "msg": "invalid or expired token"})
			return
		}
		c.Set(actorKey, orders.Actor{ID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// ActorFrom returns the caller stored by GinMiddleware, or a guest.
func ActorFrom(c *gin.Context) orders.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(orders.Actor); ok {
			return a
		}
	}
	return orders.Actor{}
}
