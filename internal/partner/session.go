package partner

import (
	"time"
)

// sessionExpiryBuffer is subtracted from the declared lifetime so a token
// about to expire is not used for a request
const sessionExpiryBuffer = 30 * time.Second

// AuthSession is an access token obtained from the directory token endpoint
type AuthSession struct {
	Token      string
	TokenType  string
	ObtainedAt time.Time

	// ExpiresIn is the lifetime declared by the token endpoint. Zero means
	// no lifetime was declared and the session lasts until rejected.
	ExpiresIn time.Duration
}

// ExpiresAt returns when the session stops being used, and false when it
// has no declared expiry
func (s *AuthSession) ExpiresAt() (time.Time, bool) {
	if s.ExpiresIn <= 0 {
		return time.Time{}, false
	}

	lifetime := s.ExpiresIn
	if lifetime > 2*sessionExpiryBuffer {
		lifetime -= sessionExpiryBuffer
	}
	return s.ObtainedAt.Add(lifetime), true
}

// Valid reports whether the session can still be used at now
func (s *AuthSession) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}

	expiresAt, ok := s.ExpiresAt()
	if !ok {
		return true
	}
	return now.Before(expiresAt)
}
