package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DownloadClaims represents the JWT claims of a signed download link.
type DownloadClaims struct {
	StorageKey string `json:"key"`
	jwt.RegisteredClaims
}

// GenerateDownloadToken signs a token granting read access to storageKey until ttl elapses.
func GenerateDownloadToken(storageKey string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := &DownloadClaims{
		StorageKey: storageKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "download",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return tokenString, nil
}

// ValidateDownloadToken validates a download token and returns its claims.
func ValidateDownloadToken(tokenString string, secret string) (*DownloadClaims, error) {
	claims := &DownloadClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid || claims.StorageKey == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
