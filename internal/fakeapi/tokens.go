package fakeapi

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typAccess  = "access"
	typRefresh = "refresh"
)

var errTokenRevoked = errors.New("token revoked")

type claims struct {
	Type    string `json:"typ"`
	Version int64  `json:"ver"`
	jwt.RegisteredClaims
}

// tokenIssuer mints and verifies HS256 tokens. Bumping the version revokes
// every access token issued before.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	version    atomic.Int64
	now        func() time.Time
}

func (ti *tokenIssuer) issue(userID int64, typ string) (string, error) {
	now := ti.now()
	ttl := ti.accessTTL
	if typ == typRefresh {
		ttl = ti.refreshTTL
	}
	c := claims{
		Type:    typ,
		Version: ti.version.Load(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// verify parses raw and returns the user id it was issued for.
func (ti *tokenIssuer) verify(raw, typ string) (int64, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if c.Type != typ {
		return 0, fmt.Errorf("invalid token type %q", c.Type)
	}
	if typ == typAccess && c.Version != ti.version.Load() {
		return 0, errTokenRevoked
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return id, nil
}

// tokenDetail maps a verification error to the message the server reports.
func tokenDetail(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "Token not yet valid"
	case errors.Is(err, errTokenRevoked):
		return "Token revoked"
	default:
		return "Invalid token"
	}
}
