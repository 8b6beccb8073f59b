package identity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeAccess       = "access"
	purposeConfirmation = "email_confirmation"
)

// Claims struct for JWT claims
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Purpose       string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenGenerator signs and parses HS256 tokens for the directory
type TokenGenerator struct {
	Secret string
	Issuer string
	now    func() time.Time
}

func NewTokenGenerator(secret, issuer string) *TokenGenerator {
	return &TokenGenerator{
		Secret: secret,
		Issuer: issuer,
		now:    time.Now,
	}
}

// GenerateToken creates a new token for user with the given purpose and expiry
func (g *TokenGenerator) GenerateToken(user User, purpose string, expiry time.Duration) (string, *Claims, error) {
	now := g.now().UTC()
	claims := &Claims{
		Email:         user.Email,
		EmailVerified: user.EmailConfirmedAt != nil,
		Purpose:       purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   user.ID,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", nil, err
	}
	return ss, claims, nil
}

// ParseToken parses and validates a token string and checks its purpose
func (g *TokenGenerator) ParseToken(tokenStr, purpose string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("failed_parse_token_claims")
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("unexpected token purpose: %s", claims.Purpose)
	}
	return claims, nil
}
