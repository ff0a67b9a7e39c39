package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"chat/infrastructure"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenClaims represents the claims in the access token
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Type   string `json:"type"`
}

type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret, now: time.Now}
}

// Issue signs a fresh access/refresh pair for userID.
func (t *Tokens) Issue(userID string) (*AuthTokens, error) {
	now := t.now()
	access, err := t.sign(userID, tokenTypeAccess, now, accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := t.sign(userID, tokenTypeRefresh, now, refreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(accessTokenTTL),
	}, nil
}

// ValidateAccessToken returns the user id carried by a valid access token.
func (t *Tokens) ValidateAccessToken(tokenString string) (string, error) {
	return t.validate(tokenString, tokenTypeAccess)
}

func (t *Tokens) Refresh(refreshToken string) (*AuthTokens, error) {
	userID, err := t.validate(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return t.Issue(userID)
}

func (t *Tokens) sign(userID, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Type:   tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) validate(tokenString, tokenType string) (string, error) {
	if tokenString == "" {
		return "", infrastructure.ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, infrastructure.ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", infrastructure.ErrTokenExpired
		}
		return "", infrastructure.ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Type != tokenType || claims.UserID == "" {
		return "", infrastructure.ErrInvalidToken
	}
	return claims.UserID, nil
}
