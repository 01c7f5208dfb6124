package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/model"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
	"mpesa-subscription-billing/internal/infra/metrics"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	authPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath = "/mpesa/stkpush/v1/processrequest"
)

// DarajaGateway implements adapter.MpesaGateway against the Safaricom Daraja
// REST API with direct HTTP calls.
type DarajaGateway struct {
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	baseURL        string
	client         *http.Client
	now            func() time.Time
}

// NewDarajaGateway creates a gateway for the given environment
// ("sandbox" or "production").
func NewDarajaGateway(environment, consumerKey, consumerSecret, shortcode, passkey, callbackURL string, timeout time.Duration) (*DarajaGateway, error) {
	if consumerKey == "" || consumerSecret == "" || shortcode == "" || passkey == "" || callbackURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	baseURL := sandboxBaseURL
	if environment == "production" {
		baseURL = productionBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DarajaGateway{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		shortcode:      shortcode,
		passkey:        passkey,
		callbackURL:    callbackURL,
		baseURL:        baseURL,
		client:         &http.Client{Timeout: timeout},
		now:            time.Now,
	}, nil
}

func (g *DarajaGateway) Name() string { return "mpesa" }

// darajaTokenResponse represents the OAuth endpoint's response.
// expires_in is documented as an integer but delivered as a JSON string.
type darajaTokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   json.Number     `json:"expires_in"`
	ErrorCode   string          `json:"errorCode"`
	ErrorMsg    json.RawMessage `json:"errorMessage"`
}

// Authenticate implements the client-credentials exchange with HTTP Basic auth.
func (g *DarajaGateway) Authenticate(ctx context.Context) (adapter.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+authPath, nil)
	if err != nil {
		return adapter.TokenGrant{}, fmt.Errorf("%w: create request: %v", domain.ErrUpstreamAuth, err)
	}
	creds := base64.StdEncoding.EncodeToString([]byte(g.consumerKey + ":" + g.consumerSecret))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGatewayCall("auth", false, elapsed)
		return adapter.TokenGrant{}, fmt.Errorf("%w: %v", domain.ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayCall("auth", false, elapsed)
		return adapter.TokenGrant{}, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamAuth, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ObserveGatewayCall("auth", false, elapsed)
		return adapter.TokenGrant{}, fmt.Errorf("%w: status %d, body: %s", domain.ErrUpstreamAuth, resp.StatusCode, string(body))
	}

	var tokenResp darajaTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		metrics.ObserveGatewayCall("auth", false, elapsed)
		return adapter.TokenGrant{}, fmt.Errorf("%w: unmarshal response: %v, body: %s", domain.ErrUpstreamAuth, err, string(body))
	}
	if tokenResp.AccessToken == "" {
		metrics.ObserveGatewayCall("auth", false, elapsed)
		return adapter.TokenGrant{}, fmt.Errorf("%w: empty access_token, body: %s", domain.ErrUpstreamAuth, string(body))
	}

	expiresIn, err := tokenResp.ExpiresIn.Int64()
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	metrics.ObserveGatewayCall("auth", true, elapsed)
	return adapter.TokenGrant{AccessToken: tokenResp.AccessToken, ExpiresIn: expiresIn}, nil
}

// darajaPushRequest is the documented STK push payload.
type darajaPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type darajaPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// STKPush submits the customer payment prompt.
func (g *DarajaGateway) STKPush(ctx context.Context, accessToken string, push adapter.STKPushRequest) (adapter.STKPushResponse, error) {
	timestamp := model.FormatMpesaTimestamp(g.now())
	payload := darajaPushRequest{
		BusinessShortCode: g.shortcode,
		Password:          g.generatePassword(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            push.Amount,
		PartyA:            push.PhoneNumber,
		PartyB:            g.shortcode,
		PhoneNumber:       push.PhoneNumber,
		CallBackURL:       g.callbackURL,
		AccountReference:  push.AccountReference,
		TransactionDesc:   push.Description,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return adapter.STKPushResponse{}, fmt.Errorf("%w: marshal request: %v", domain.ErrUpstreamPayment, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+pushPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return adapter.STKPushResponse{}, fmt.Errorf("%w: create request: %v", domain.ErrUpstreamPayment, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: %v", domain.ErrUpstreamPayment, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamPayment, err)
	}

	var pushResp darajaPushResponse
	if err := json.Unmarshal(body, &pushResp); err != nil {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: unmarshal response: %v, body: %s", domain.ErrUpstreamPayment, err, string(body))
	}

	if resp.StatusCode != http.StatusOK || pushResp.ErrorCode != "" {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: status %d, error %s: %s", domain.ErrUpstreamPayment, resp.StatusCode, pushResp.ErrorCode, pushResp.ErrorMessage)
	}
	if pushResp.ResponseCode != "0" && pushResp.ResponseCode != "" {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: response code %s: %s", domain.ErrUpstreamPayment, pushResp.ResponseCode, pushResp.ResponseDescription)
	}
	if pushResp.CheckoutRequestID == "" || pushResp.MerchantRequestID == "" {
		metrics.ObserveGatewayCall("stkpush", false, elapsed)
		return adapter.STKPushResponse{}, fmt.Errorf("%w: missing correlation identifiers, body: %s", domain.ErrUpstreamPayment, string(body))
	}

	metrics.ObserveGatewayCall("stkpush", true, elapsed)
	return adapter.STKPushResponse{
		CheckoutRequestID: pushResp.CheckoutRequestID,
		MerchantRequestID: pushResp.MerchantRequestID,
	}, nil
}

// generatePassword builds the documented push credential:
// base64(shortcode + passkey + timestamp).
func (g *DarajaGateway) generatePassword(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.shortcode + g.passkey + timestamp))
}
