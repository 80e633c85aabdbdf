package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"campusevents/internal/domain"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type jwtVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier returns a TokenVerifier that accepts HS256 tokens signed with secret.
// Tokens are issued by the campus identity provider; this service only reads them.
func NewJWTVerifier(secret string) domain.TokenVerifier {
	return &jwtVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *jwtVerifier) Verify(token string) (domain.Principal, error) {
	claims := &jwtClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("failed to verify token: %w", err)
	}
	if claims.Subject == "" {
		return domain.Principal{}, errors.New("failed to verify token: missing subject")
	}
	return domain.Principal{UserID: claims.Subject, Roles: claims.Roles}, nil
}
