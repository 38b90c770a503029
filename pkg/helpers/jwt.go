package helpers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredToken is returned for a well-formed, correctly signed token
	// whose lifetime has passed.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidToken is returned for malformed, tampered or wrongly signed
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// JWTManager issues signed access tokens and opaque refresh tokens.
type JWTManager struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewJWTManager(secret, issuer, audience string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:     []byte(secret),
		Issuer:     issuer,
		Audience:   audience,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// Claims embeds the account id as subject plus its role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived HS256 token carrying the account id
// and role.
func (m *JWTManager) GenerateAccessToken(accountID, role string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.AccessTTL)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.Issuer,
			Audience:  jwt.ClaimStrings{m.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.Secret)
	return s, exp, err
}

// GenerateRefreshToken returns a high-entropy opaque token. It carries no
// claims; its only property is unguessability.
func (m *JWTManager) GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RefreshExpiry returns the expiry timestamp for a refresh token issued now.
func (m *JWTManager) RefreshExpiry() time.Time {
	return time.Now().Add(m.RefreshTTL)
}

// ParseAccessToken verifies signature, issuer, audience and expiry. Signature
// and shape failures map to ErrInvalidToken, a pure lifetime failure to
// ErrExpiredToken.
func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	}, jwt.WithIssuer(m.Issuer), jwt.WithAudience(m.Audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectFromAccessToken extracts the account id, verifying the token on every
// call. Claims are never trusted from an unverified token.
func (m *JWTManager) SubjectFromAccessToken(tokenStr string) (string, error) {
	claims, err := m.ParseAccessToken(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
