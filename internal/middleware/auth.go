package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/silentsos/silentsos/internal/auth"
	"github.com/silentsos/silentsos/internal/models"
	"github.com/silentsos/silentsos/internal/types"
)

// TokenCookie is the cookie checked when no Authorization header is sent.
const TokenCookie = "token"

type AuthenticatedUser struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	IsStaff bool   `json:"is_staff"`
}

var errNoCredentials = errors.New("no credentials")

// bearerToken extracts the access token from the Authorization header or the
// token cookie. A malformed header is reported rather than ignored.
func bearerToken(ctx *gin.Context) (string, error) {
	authHeader := ctx.GetHeader("Authorization")

	if authHeader == "" {
		if cookie, err := ctx.Cookie(TokenCookie); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", errNoCredentials
	}

	parts := strings.SplitN(authHeader, " ", 2)

	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("Authorization header format must be Bearer {token}")
	}

	return parts[1], nil
}

// authenticate resolves the caller, aborting the request on any failure.
// It reports false when the request was aborted.
func authenticate(ctx *gin.Context, conn *gorm.DB, issuer *auth.Issuer, tokenString string) bool {
	claims, err := issuer.VerifyJWT(tokenString, auth.TokenTypeAccess)

	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}

	var user models.User

	if err := conn.WithContext(ctx.Request.Context()).Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return false
	}

	if !user.IsActive {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User account is disabled"})
		return false
	}

	ctx.Set(types.ContextUserKey, AuthenticatedUser{
		ID:      user.ID,
		Email:   user.Email,
		IsStaff: user.IsStaff,
	})

	return true
}

// AuthMiddleware requires a valid access token.
func AuthMiddleware(conn *gorm.DB, issuer *auth.Issuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := bearerToken(ctx)

		if errors.Is(err, errNoCredentials) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if !authenticate(ctx, conn, issuer, tokenString) {
			return
		}

		ctx.Next()
	}
}

// OptionalAuth authenticates the caller when credentials are present and lets
// anonymous requests through untouched. Bad credentials are still rejected.
func OptionalAuth(conn *gorm.DB, issuer *auth.Issuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := bearerToken(ctx)

		if errors.Is(err, errNoCredentials) {
			ctx.Next()
			return
		}

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if !authenticate(ctx, conn, issuer, tokenString) {
			return
		}

		ctx.Next()
	}
}
