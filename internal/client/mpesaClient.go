package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"comolor-pos/internal/config"
)

// MpesaClient covers the outbound Daraja calls the engine needs: token fetch,
// C2B URL registration per till, sandbox payment simulation, and the local
// keyed-hash check for inbound webhook signatures.
type MpesaClient interface {
	GetAccessToken(ctx context.Context) (string, error)
	RegisterC2BURLs(ctx context.Context, tillNumber, confirmationURL, validationURL string) error
	SimulateC2BPayment(ctx context.Context, amount, msisdn, billRefNumber string) error
	ValidateWebhookSignature(payload []byte, signature string) bool
}

type mpesaClientImpl struct {
	httpClient     *http.Client
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
}

func NewMpesaClient(cfg *config.Mpesa) MpesaClient {
	baseURL := "https://sandbox.safaricom.co.ke"
	if cfg.Environment == "production" {
		baseURL = "https://api.safaricom.co.ke"
	}

	return &mpesaClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:        baseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
	}
}

func (c *mpesaClientImpl) GetAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.consumerKey + ":" + c.consumerSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mpesa token error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	return res.AccessToken, nil
}

func (c *mpesaClientImpl) RegisterC2BURLs(ctx context.Context, tillNumber, confirmationURL, validationURL string) error {
	payload := map[string]interface{}{
		"ShortCode":       tillNumber,
		"ResponseType":    "Completed",
		"ConfirmationURL": confirmationURL,
		"ValidationURL":   validationURL,
	}

	result, err := c.post(ctx, "/mpesa/c2b/v1/registerurl", payload)
	if err != nil {
		return fmt.Errorf("register c2b urls for %s: %w", tillNumber, err)
	}

	if result.ResponseCode != "0" {
		return fmt.Errorf("register c2b urls for %s: response code %s", tillNumber, result.ResponseCode)
	}
	return nil
}

func (c *mpesaClientImpl) SimulateC2BPayment(ctx context.Context, amount, msisdn, billRefNumber string) error {
	payload := map[string]interface{}{
		"ShortCode":     c.shortCode,
		"CommandID":     "CustomerPayBillOnline",
		"Amount":        amount,
		"Msisdn":        msisdn,
		"BillRefNumber": billRefNumber,
	}

	result, err := c.post(ctx, "/mpesa/c2b/v1/simulate", payload)
	if err != nil {
		return fmt.Errorf("simulate c2b payment: %w", err)
	}

	if result.ResponseCode != "0" {
		return fmt.Errorf("simulate c2b payment: response code %s", result.ResponseCode)
	}
	return nil
}

// ValidateWebhookSignature checks the gateway's HMAC-SHA256 hex signature of
// the raw body, keyed with the consumer secret.
func (c *mpesaClientImpl) ValidateWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.consumerSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

type darajaResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

func (c *mpesaClientImpl) post(ctx context.Context, path string, payload map[string]interface{}) (*darajaResponse, error) {
	accessToken, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get mpesa access token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mpesa error %d: %s", resp.StatusCode, string(b))
	}

	var result darajaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode mpesa response: %w", err)
	}

	return &result, nil
}
