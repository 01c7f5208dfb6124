//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
	"mpesa-subscription-billing/internal/usecase"
)

func TestTokenUseCase_ReusesValidToken(t *testing.T) {
	ctx := context.Background()
	tokens := NewMockTokenRepo()
	gateway := &MockMpesaGateway{}
	uc := usecase.NewTokenUseCase(tokens, gateway, newTestLogger())

	first, err := uc.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	second, err := uc.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}

	if first != second {
		t.Errorf("tokens differ: %q vs %q", first, second)
	}
	if gateway.Calls.Auth != 1 {
		t.Errorf("auth calls = %d, want 1", gateway.Calls.Auth)
	}
}

func TestTokenUseCase_RefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	tokens := NewMockTokenRepo()
	gateway := &MockMpesaGateway{}
	// Grants shorter than the safety margin are stored already expired,
	// so every call must hit the provider again.
	gateway.AuthenticateFunc = func(ctx context.Context) (adapter.TokenGrant, error) {
		return adapter.TokenGrant{AccessToken: "short-lived", ExpiresIn: 30}, nil
	}
	uc := usecase.NewTokenUseCase(tokens, gateway, newTestLogger())

	if _, err := uc.GetValidToken(ctx); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if _, err := uc.GetValidToken(ctx); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if gateway.Calls.Auth != 2 {
		t.Errorf("auth calls = %d, want 2", gateway.Calls.Auth)
	}
}

func TestTokenUseCase_AuthFailurePropagates(t *testing.T) {
	ctx := context.Background()
	tokens := NewMockTokenRepo()
	gateway := &MockMpesaGateway{}
	gateway.AuthenticateFunc = func(ctx context.Context) (adapter.TokenGrant, error) {
		return adapter.TokenGrant{}, domain.ErrUpstreamAuth
	}
	uc := usecase.NewTokenUseCase(tokens, gateway, newTestLogger())

	if _, err := uc.GetValidToken(ctx); !errors.Is(err, domain.ErrUpstreamAuth) {
		t.Fatalf("err = %v, want ErrUpstreamAuth", err)
	}
}
