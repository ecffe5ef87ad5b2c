// Package gateway talks to the mobile-money gateway: token issuance, STK
// push initiation and transaction-status queries.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/models"
)

const timestampLayout = "20060102150405"

// stillProcessingCode is the gateway error code returned by the status-query
// endpoint while a push is awaiting the payer's PIN.
const stillProcessingCode = "500.001.1001"

// ErrStillProcessing means the gateway has not resolved the transaction yet.
var ErrStillProcessing = errors.New("transaction still processing")

// AuthError reports a failed token fetch.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth failed: %v", e.Err)
	}
	return fmt.Sprintf("gateway auth failed: status %d", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// InitiationError reports a push request the gateway did not acknowledge.
type InitiationError struct {
	Status int
	Code   string
	Desc   string
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("push request rejected: status %d code %q %s", e.Status, e.Code, e.Desc)
}

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	TokenTTL       time.Duration
	Timeout        time.Duration
}

// Client caches the bearer token in memory and rebuilds the timestamped
// password on every request. Safe for concurrent use; a refresh in flight
// is shared by all callers blocked on the mutex.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
	now  func() time.Time

	mu         sync.Mutex
	token      string
	obtainedAt time.Time
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 45 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
		now:  time.Now,
	}
}

// Token returns the cached bearer token, fetching a fresh one when absent
// or older than the configured TTL. No retries: initiation callers retry
// the whole flow if they want to.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Sub(c.obtainedAt) < c.cfg.TokenTTL {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	res, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &AuthError{Status: res.StatusCode}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", &AuthError{Err: err}
	}
	if body.AccessToken == "" {
		return "", &AuthError{Err: errors.New("empty access_token in response")}
	}

	c.token = body.AccessToken
	c.obtainedAt = c.now()
	return c.token, nil
}

// password derives the request credential the gateway expects. It embeds
// the timestamp, so it is recomputed per request.
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + ts))
}

type stkPushRequest struct {
	BusinessShortCode string  `json:"BusinessShortCode"`
	Password          string  `json:"Password"`
	Timestamp         string  `json:"Timestamp"`
	TransactionType   string  `json:"TransactionType"`
	Amount            float64 `json:"Amount"`
	PartyA            string  `json:"PartyA"`
	PartyB            string  `json:"PartyB"`
	PhoneNumber       string  `json:"PhoneNumber"`
	CallBackURL       string  `json:"CallBackURL"`
	AccountReference  string  `json:"AccountReference"`
	TransactionDesc   string  `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ErrorCode         string `json:"errorCode"`
	ErrorMessage      string `json:"errorMessage"`
}

// STKPush asks the gateway to prompt the payer's device. Returns the
// gateway-assigned checkout ID on acknowledgment.
func (c *Client) STKPush(ctx context.Context, phone string, amount float64, reference, description string) (string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}

	ts := c.now().Format(timestampLayout)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	var resp stkPushResponse
	status, err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &resp)
	if err != nil {
		return "", &InitiationError{Status: status, Desc: err.Error()}
	}
	if status < 200 || status >= 300 || resp.ResponseCode != "0" {
		return "", &InitiationError{Status: status, Code: resp.ResponseCode, Desc: firstNonEmpty(resp.ErrorMessage, resp.ResponseDesc)}
	}
	if resp.CheckoutRequestID == "" {
		return "", &InitiationError{Status: status, Desc: "missing CheckoutRequestID"}
	}
	return resp.CheckoutRequestID, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResponseDesc string `json:"ResponseDescription"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryStatus asks the gateway what became of an earlier push. Used by the
// reconciliation sweep when a callback never arrived.
func (c *Client) QueryStatus(ctx context.Context, checkoutID string) (*models.STKQueryResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	ts := c.now().Format(timestampLayout)
	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutID,
	}

	var resp stkQueryResponse
	status, err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &resp)
	if err != nil {
		return nil, fmt.Errorf("status query: %w", err)
	}
	if resp.ErrorCode == stillProcessingCode {
		return nil, ErrStillProcessing
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("status query: gateway returned %d (%s)", status, resp.ErrorMessage)
	}
	return &models.STKQueryResult{
		ResultCode:   resp.ResultCode,
		ResultDesc:   resp.ResultDesc,
		ResponseDesc: resp.ResponseDesc,
	}, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, err
	}
	if len(raw) > 0 {
		// Error bodies share field names with success bodies, decode both ways.
		if err := json.Unmarshal(raw, out); err != nil {
			c.log.Warn("undecodable gateway response",
				zap.String("path", path),
				zap.Int("status", res.StatusCode),
			)
		}
	}
	return res.StatusCode, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
