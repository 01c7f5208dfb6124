package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
	"mpesa-subscription-billing/internal/domain/ports/repository"
	"mpesa-subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ TokenUseCase = (*tokenUC)(nil)

// TokenUseCase provides OAuth access tokens for gateway calls, reusing
// stored tokens until they expire.
type TokenUseCase interface {
	GetValidToken(ctx context.Context) (string, error)
}

type tokenUC struct {
	tokens  repository.AccessTokenRepository
	gateway adapter.MpesaGateway

	now func() time.Time
	log *zerolog.Logger
}

func NewTokenUseCase(tokens repository.AccessTokenRepository, gateway adapter.MpesaGateway, logger *zerolog.Logger) *tokenUC {
	return &tokenUC{tokens: tokens, gateway: gateway, now: time.Now, log: logger}
}

// GetValidToken returns a cached token when one is still usable, otherwise
// authenticates against the provider and stores the fresh grant.
func (u *tokenUC) GetValidToken(ctx context.Context) (string, error) {
	cached, err := u.tokens.FindNewestValid(ctx, repository.NoTX, u.now())
	if err == nil {
		metrics.IncTokenCache("hit")
		return cached.AccessToken, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	metrics.IncTokenCache("miss")

	grant, err := u.gateway.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	token := model.NewAccessToken(grant.AccessToken, time.Duration(grant.ExpiresIn)*time.Second)
	if err := u.tokens.Save(ctx, repository.NoTX, token); err != nil {
		// The grant is still usable for this call even if persisting failed.
		u.log.Warn().Err(err).Msg("failed to persist access token")
	}
	return grant.AccessToken, nil
}
