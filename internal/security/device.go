package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const deviceIssuer = "sharp-dashboard"

// DeviceClaims is carried in the device cookie. The device id keys the
// persisted storage of one browser.
type DeviceClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

func IssueDeviceToken(secret string, deviceID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("missing secret")
	}
	if deviceID == "" {
		return "", errors.New("missing device id")
	}
	if ttl <= 0 {
		return "", errors.New("invalid ttl")
	}

	now := time.Now()
	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    deviceIssuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	return signed, nil
}

func ParseDeviceToken(tokenStr string, secret string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(deviceIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid || claims.DeviceID == "" {
		return nil, errors.New("invalid device token")
	}
	return claims, nil
}
