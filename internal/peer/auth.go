package peer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/julianstephens/nextup/internal/constants"
)

// ErrMissingSecret is returned when sync is attempted without a shared secret.
var ErrMissingSecret = errors.New("peer secret is not configured")

// Claims identifies the calling device.
type Claims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// IssueToken signs a short-lived HS256 token for userID/deviceID.
func IssueToken(secret []byte, userID, deviceID string, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}
	claims := Claims{
		UserID:   userID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    constants.PeerTokenIssuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(constants.PeerTokenTTL)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseToken verifies a token issued by IssueToken.
func ParseToken(secret []byte, tokenString string, now time.Time) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(constants.PeerTokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid peer token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid peer token")
	}
	if claims.UserID == "" || claims.DeviceID == "" {
		return nil, errors.New("peer token is missing user or device id")
	}
	return &claims, nil
}
