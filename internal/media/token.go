// Package media issues access tokens for the real-time media service used by
// browser voice sessions.
package media

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when the media credentials are missing.
var ErrNotConfigured = errors.New("media service not configured")

// VideoGrant lists the room permissions embedded in an access token.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin"`
	Room         string `json:"room"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// Issuer signs room access tokens with the media service API secret.
type Issuer struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
}

// Token mints a signed access token granting identity join/publish/subscribe
// rights on room. The API key travels as the issuer claim so the media server
// can pick the right secret.
func (i Issuer) Token(room, identity string) (string, error) {
	if i.APIKey == "" || i.APISecret == "" {
		return "", ErrNotConfigured
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": i.APIKey,
		"sub": identity,
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"video": VideoGrant{
			RoomJoin:     true,
			Room:         room,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.APISecret))
}
