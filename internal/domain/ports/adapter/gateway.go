package adapter

import "context"

// TokenGrant is the result of a credential exchange with the gateway.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   int64 // seconds
}

// STKPushRequest carries everything the gateway needs to prompt the payer.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           int64 // whole KSh
	AccountReference string
	Description      string
}

// STKPushResponse holds the correlation identifier pair the gateway issues
// for a push; the later callback is matched on CheckoutRequestID.
type STKPushResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
}

// MpesaGateway is the hex port for the Daraja API.
type MpesaGateway interface {
	Name() string

	// Authenticate performs the OAuth client-credentials exchange.
	Authenticate(ctx context.Context) (TokenGrant, error)
	// STKPush submits a customer payment prompt using a bearer token obtained
	// via Authenticate.
	STKPush(ctx context.Context, accessToken string, req STKPushRequest) (STKPushResponse, error)
}
