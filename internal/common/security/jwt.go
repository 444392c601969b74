package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var (
	TokenAuth *jwtauth.JWTAuth
	tokenTTL  = 24 * time.Hour
)

func InitJWT(secret []byte, ttl time.Duration) {
	TokenAuth = jwtauth.New("HS256", secret, nil)
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func GenerateToken(adminID int64, username, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"admin_id": strconv.FormatInt(adminID, 10),
		"username": username,
		"role":     role,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetAdminIDFromClaims(claims map[string]any) (string, error) {
	id, ok := claims["admin_id"].(string)
	if !ok || id == "" {
		return "", errors.New("admin_id claim is missing or not a string")
	}
	return id, nil
}

func GetRoleFromClaims(claims map[string]any) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
