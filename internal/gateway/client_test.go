package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.Handler, ttl time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/payments/callback",
		TokenTTL:       ttl,
	}, zap.NewNop())
}

func tokenHandler(hits *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*hits++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	}
}

func TestToken_CachedWithinTTL(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&hits))

	c := testClient(t, mux, 45*time.Minute)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tok, err := c.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error: %v", err)
		}
		if tok != "tok-1" {
			t.Fatalf("Token() = %q, want tok-1", tok)
		}
	}
	if hits != 1 {
		t.Errorf("token endpoint hit %d times, want 1", hits)
	}

	// Past the TTL the cache is stale and a refresh happens.
	now = now.Add(46 * time.Minute)
	if _, err := c.Token(context.Background()); err != nil {
		t.Fatalf("Token() after expiry error: %v", err)
	}
	if hits != 2 {
		t.Errorf("token endpoint hit %d times after expiry, want 2", hits)
	}
}

func TestToken_AuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := testClient(t, mux, time.Minute)

	_, err := c.Token(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Token() error = %v, want *AuthError", err)
	}
}

func TestSTKPush_BuildsRequestAndReturnsCheckoutID(t *testing.T) {
	var hits int
	var got stkPushRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&hits))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_123",
		})
	})

	c := testClient(t, mux, time.Minute)
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	id, err := c.STKPush(context.Background(), "254722000111", 5.0, "bid_42", "Bid hide fee")
	if err != nil {
		t.Fatalf("STKPush() error: %v", err)
	}
	if id != "ws_CO_123" {
		t.Errorf("checkout id = %q, want ws_CO_123", id)
	}

	wantTS := "20240501103000"
	if got.Timestamp != wantTS {
		t.Errorf("Timestamp = %q, want %q", got.Timestamp, wantTS)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + wantTS))
	if got.Password != wantPassword {
		t.Errorf("Password = %q, want derived from shortcode+passkey+timestamp", got.Password)
	}
	if got.PartyA != "254722000111" || got.PhoneNumber != "254722000111" {
		t.Errorf("payer set as PartyA=%q PhoneNumber=%q, want the phone in both", got.PartyA, got.PhoneNumber)
	}
	if got.AccountReference != "bid_42" {
		t.Errorf("AccountReference = %q, want bid_42", got.AccountReference)
	}
	if got.Amount != 5 {
		t.Errorf("Amount = %v, want 5", got.Amount)
	}
}

func TestSTKPush_DecimalAmountPassedThrough(t *testing.T) {
	var got stkPushRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(new(int)))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_45",
		})
	})

	c := testClient(t, mux, time.Minute)

	// Hide fee on a salary of 90 quotes exactly 4.50; the gateway must be
	// asked for the same amount the ledger will record.
	if _, err := c.STKPush(context.Background(), "254722000111", 4.5, "bid_7", "Bid hide fee"); err != nil {
		t.Fatalf("STKPush() error: %v", err)
	}
	if got.Amount != 4.5 {
		t.Errorf("Amount = %v, want 4.5 uncoerced", got.Amount)
	}
}

func TestSTKPush_GatewayRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(new(int)))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid PhoneNumber",
		})
	})

	c := testClient(t, mux, time.Minute)

	_, err := c.STKPush(context.Background(), "banana", 5.0, "bid_42", "fee")
	var initErr *InitiationError
	if !errors.As(err, &initErr) {
		t.Fatalf("STKPush() error = %v, want *InitiationError", err)
	}
}

func TestQueryStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(new(int)))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "0",
			"ResponseDescription": "The service request has been accepted successfully",
			"ResultCode":          "1032",
			"ResultDesc":          "Request cancelled by user",
		})
	})

	c := testClient(t, mux, time.Minute)

	res, err := c.QueryStatus(context.Background(), "ws_CO_123")
	if err != nil {
		t.Fatalf("QueryStatus() error: %v", err)
	}
	if res.ResultCode != "1032" {
		t.Errorf("ResultCode = %q, want 1032", res.ResultCode)
	}
	if res.ResponseDesc != "The service request has been accepted successfully" {
		t.Errorf("ResponseDesc = %q, want the gateway description kept verbatim", res.ResponseDesc)
	}
}

func TestQueryStatus_StillProcessing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(new(int)))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
	})

	c := testClient(t, mux, time.Minute)

	_, err := c.QueryStatus(context.Background(), "ws_CO_123")
	if !errors.Is(err, ErrStillProcessing) {
		t.Fatalf("QueryStatus() error = %v, want ErrStillProcessing", err)
	}
}
