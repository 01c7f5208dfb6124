package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TokenExpirySafetyMargin is subtracted from the gateway-reported lifetime so
// a token is never presented right at its expiry instant.
const TokenExpirySafetyMargin = 60 * time.Second

// AccessToken is one row of the append-only OAuth token log. Tokens are never
// mutated or deleted; the newest row with a future expiry is the valid one.
type AccessToken struct {
	ID          string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewAccessToken stores a freshly issued token, backing off its expiry by the
// safety margin.
func NewAccessToken(token string, expiresIn time.Duration) *AccessToken {
	now := time.Now()
	return &AccessToken{
		ID:          ulid.Make().String(),
		AccessToken: token,
		ExpiresAt:   now.Add(expiresIn - TokenExpirySafetyMargin),
		CreatedAt:   now,
	}
}

func (t *AccessToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}
