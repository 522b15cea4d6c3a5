// Package token issues and verifies the reconnect tokens a client
// presents when resuming control of a player after a dropped game
// socket (spec §5). Grounded on the teacher pack's JWT usage in
// bormisov1-spaceship-online-game/server/auth.go, adapted from that
// repo's untyped jwt.MapClaims to jwt/v5's typed RegisteredClaims.
package token

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quadball/server/internal/apperr"
)

// TTL is how long a reconnect token remains valid after issuance.
const TTL = 2 * time.Hour

// Claims identifies the room and player a token authorizes a
// reconnecting socket to control.
type Claims struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies reconnect tokens with a process-lifetime
// HMAC secret. A restart invalidates outstanding tokens, which is
// acceptable because a restart also drops every live room.
type Issuer struct {
	secret []byte
}

// NewIssuer generates a fresh random signing secret.
func NewIssuer() (*Issuer, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("token: generating secret: %w", err)
	}
	return &Issuer{secret: secret}, nil
}

// Issue signs a reconnect token scoping roomID/playerID.
func (iss *Issuer) Issue(roomID, playerID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RoomID:   roomID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(iss.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing: %w", err)
	}
	return signed, nil
}

// Verify parses tokenStr and confirms it authorizes roomID/playerID.
func (iss *Issuer) Verify(tokenStr, roomID, playerID string) error {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return iss.secret, nil
	})
	if err != nil {
		return apperr.New(apperr.KindAuthorization, fmt.Errorf("token: invalid: %w", err))
	}
	if claims.RoomID != roomID || claims.PlayerID != playerID {
		return apperr.New(apperr.KindAuthorization, fmt.Errorf("token: does not authorize room=%s player=%s", roomID, playerID))
	}
	return nil
}
