package kyc

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Client talks to the identity-verification vendor. A session is
// created per driver; the vendor calls back on our webhook when the
// driver finishes, and writes results onto the board itself.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
	logger        *logger.Logger
}

func NewClient(cfg *config.KYCConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        log,
	}
}

// Session is a vendor verification session the driver is redirected to
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type createSessionRequest struct {
	Reference string `json:"reference"`
	Email     string `json:"email,omitempty"`
}

// CreateSession starts a verification session for a driver. The driver
// ID is passed as the vendor reference and comes back in the webhook.
func (c *Client) CreateSession(ctx context.Context, driverID, email string) (*Session, error) {
	payload, err := json.Marshal(createSessionRequest{Reference: driverID, Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/sessions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info().
		Str("driver_id", driverID).
		Msg("creating KYC session")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to call KYC vendor")
		return nil, errors.Upstream("kyc", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Interface("error", errResp).
			Msg("KYC session creation failed")
		return nil, errors.Upstream("kyc", fmt.Errorf("session creation failed with status %d", resp.StatusCode))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info().
		Str("driver_id", driverID).
		Str("session_id", session.ID).
		Msg("KYC session created")

	return &session, nil
}

// WebhookEvent is the vendor's completion callback payload
type WebhookEvent struct {
	SessionID   string     `json:"session_id"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

const (
	WebhookStatusApproved = "approved"
	WebhookStatusDeclined = "declined"
	WebhookStatusReview   = "review"
)

// VerifyWebhook checks the vendor signature over the raw body and
// parses the event. The signature is a hex HMAC-SHA256 sent in the
// vendor's signature header.
func (c *Client) VerifyWebhook(body []byte, signature string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, errors.Unauthorized("invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.BadRequest("malformed webhook payload")
	}
	if event.Reference == "" {
		return nil, errors.BadRequest("webhook payload missing reference")
	}

	return &event, nil
}
