package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrWrongTokenType   = errors.New("wrong token type")
	ErrTokenBlacklisted = errors.New("token is blacklisted")
)

// Claims carries the user identity alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
}

// TokenPair is what a successful sign-in returns.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer signs and verifies HS256 tokens. Refresh tokens revoked through
// Revoke are remembered by jti until they would have expired anyway.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  *cache.Cache
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  cache.New(refreshTTL, 10*time.Minute),
		now:        time.Now,
	}, nil
}

func (i *Issuer) generateJWT(userID uint, email, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// IssuePair mints a fresh access and refresh token for the user.
func (i *Issuer) IssuePair(userID uint, email string) (TokenPair, error) {
	access, err := i.generateJWT(userID, email, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.generateJWT(userID, email, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyJWT parses tokenString and checks that it is a token of tokenType.
func (i *Issuer) VerifyJWT(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}

	if tokenType == TokenTypeRefresh {
		if _, revoked := i.blacklist.Get(claims.ID); revoked {
			return nil, ErrTokenBlacklisted
		}
	}

	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (i *Issuer) Refresh(refresh string) (string, error) {
	claims, err := i.VerifyJWT(refresh, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	return i.generateJWT(claims.UserID, claims.Email, TokenTypeAccess, i.accessTTL)
}

// Revoke blacklists a refresh token for the rest of its lifetime.
func (i *Issuer) Revoke(refresh string) error {
	claims, err := i.VerifyJWT(refresh, TokenTypeRefresh)
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Sub(i.now())
	if ttl <= 0 {
		return nil
	}

	i.blacklist.Set(claims.ID, struct{}{}, ttl)

	return nil
}
