package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminClaims identifies an operator allowed to read the admin HTTP
// surface (§ DOMAIN STACK / admin surface). There are no per-resource
// permissions here — unlike the teacher's stream-ownership model, a
// signalling broker's admin surface is entirely read-only operational
// data, so a valid token is simply "yes, you may read."
type AdminClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// AdminAuthService issues and validates the bearer tokens that gate the
// admin surface's health/stats/config endpoints.
type AdminAuthService struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewAdminAuthService(secret string, tokenTTL time.Duration) *AdminAuthService {
	return &AdminAuthService{secret: []byte(secret), tokenTTL: tokenTTL}
}

// IssueToken mints a signed token for subject (an operator identifier),
// valid for the configured TTL.
func (s *AdminAuthService) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies signature and expiry, returning the claims.
func (s *AdminAuthService) ValidateToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
