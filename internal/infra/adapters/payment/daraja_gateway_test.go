//go:build !integration

package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mpesa-subscription-billing/internal/domain"
	"mpesa-subscription-billing/internal/domain/ports/adapter"
)

func newTestGateway(t *testing.T, baseURL string) *DarajaGateway {
	t.Helper()
	g, err := NewDarajaGateway("sandbox", "key", "secret", "174379", "passkey", "https://example.com/callback", 5*time.Second)
	if err != nil {
		t.Fatalf("NewDarajaGateway: %v", err)
	}
	g.baseURL = baseURL
	g.now = func() time.Time { return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC) }
	return g
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("missing grant_type, got query %q", r.URL.RawQuery)
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("Authorization = %q, want %q", got, want)
		}
		w.Write([]byte(`{"access_token":"tok-abc","expires_in":"3599"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	grant, err := g.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if grant.AccessToken != "tok-abc" {
		t.Errorf("AccessToken = %q, want tok-abc", grant.AccessToken)
	}
	if grant.ExpiresIn != 3599 {
		t.Errorf("ExpiresIn = %d, want 3599", grant.ExpiresIn)
	}
}

func TestAuthenticateUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errorCode":"401.002.01"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.Authenticate(context.Background())
	if !errors.Is(err, domain.ErrUpstreamAuth) {
		t.Fatalf("err = %v, want ErrUpstreamAuth", err)
	}
}

func TestSTKPush(t *testing.T) {
	var captured darajaPushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mpesa/stkpush/v1/processrequest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"CheckoutRequestID":"ws_CO_123","MerchantRequestID":"mr_456","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	resp, err := g.STKPush(context.Background(), "tok-abc", adapter.STKPushRequest{
		PhoneNumber:      "254712345678",
		Amount:           1500,
		AccountReference: "SUB-1",
		Description:      "Premium plan",
	})
	if err != nil {
		t.Fatalf("STKPush: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_123" || resp.MerchantRequestID != "mr_456" {
		t.Errorf("unexpected response %+v", resp)
	}

	if captured.TransactionType != "CustomerPayBillOnline" {
		t.Errorf("TransactionType = %q", captured.TransactionType)
	}
	if captured.Timestamp != "20250615143000" {
		t.Errorf("Timestamp = %q", captured.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20250615143000"))
	if captured.Password != wantPassword {
		t.Errorf("Password = %q, want %q", captured.Password, wantPassword)
	}
	if captured.PartyA != "254712345678" || captured.PartyB != "174379" {
		t.Errorf("PartyA/PartyB = %q/%q", captured.PartyA, captured.PartyB)
	}
	if captured.Amount != 1500 {
		t.Errorf("Amount = %d", captured.Amount)
	}
}

func TestSTKPushRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.STKPush(context.Background(), "tok-abc", adapter.STKPushRequest{PhoneNumber: "254700000000", Amount: 100})
	if !errors.Is(err, domain.ErrUpstreamPayment) {
		t.Fatalf("err = %v, want ErrUpstreamPayment", err)
	}
}
