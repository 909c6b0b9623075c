package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"

	"go-marketplace/models"
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// Actor returns the caller described by the claims.
func (c *Claims) Actor() models.Actor {
	return models.Actor{ID: models.NormalizeID(c.UserID), Email: c.Email, Role: models.Role(c.Role)}
}

// GenerateJWT signs a token for a user. Login itself is handled by the
// auth service; this is used by tooling and tests.
func GenerateJWT(secret []byte, userID, email string, role models.Role, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   string(role),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseJWT verifies tokenStr and returns its claims.
func ParseJWT(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
