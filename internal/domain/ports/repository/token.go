package repository

import (
	"context"
	"time"

	"mpesa-subscription-billing/internal/domain/model"
)

// AccessTokenRepository is the port for the append-only gateway token log.
type AccessTokenRepository interface {
	Save(ctx context.Context, tx Tx, token *model.AccessToken) error
	// FindNewestValid returns the most recently created token whose expiry is
	// strictly after the given instant, or domain.ErrNotFound.
	FindNewestValid(ctx context.Context, tx Tx, at time.Time) (*model.AccessToken, error)
}
