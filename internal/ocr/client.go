package ocr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Client calls the OCR vendor to recognize text in an uploaded
// document image. Requests are HMAC-signed with the app secret.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time
}

func NewClient(cfg *config.OCRConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
		now:        time.Now,
	}
}

// Result is the vendor response reduced to what the extractor needs
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type recognizeRequest struct {
	FileURL string `json:"file_url"`
}

type recognizeResponse struct {
	Pages []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
		Confidence float64 `json:"confidence"`
	} `json:"pages"`
}

// Recognize submits a document image URL and returns the flattened text
func (c *Client) Recognize(ctx context.Context, fileURL string) (*Result, error) {
	payload, err := json.Marshal(recognizeRequest{FileURL: fileURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/recognize", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.sign(httpReq, payload)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to call OCR vendor")
		return nil, errors.Upstream("ocr", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Interface("error", errResp).
			Msg("OCR recognition failed")
		return nil, errors.Upstream("ocr", fmt.Errorf("recognition failed with status %d", resp.StatusCode))
	}

	var vendorResp recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&vendorResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := flatten(&vendorResp)
	c.logger.Debug().
		Int("text_length", len(result.Text)).
		Float64("confidence", result.Confidence).
		Msg("OCR recognition complete")

	return result, nil
}

// sign attaches the vendor's authentication headers: the app ID, a
// unix timestamp, and a hex HMAC-SHA256 over appID + timestamp + body.
func (c *Client) sign(req *http.Request, body []byte) {
	ts := strconv.FormatInt(c.now().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write([]byte(c.appID))
	mac.Write([]byte(ts))
	mac.Write(body)

	req.Header.Set("X-App-ID", c.appID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
}

// flatten joins recognized lines into the newline-separated blob the
// field extractor consumes, averaging confidence across pages.
func flatten(resp *recognizeResponse) *Result {
	var sb strings.Builder
	var confidence float64
	for _, page := range resp.Pages {
		for _, line := range page.Lines {
			sb.WriteString(line.Text)
			sb.WriteString("\n")
		}
		confidence += page.Confidence
	}
	if len(resp.Pages) > 0 {
		confidence /= float64(len(resp.Pages))
	}
	return &Result{
		Text:       sb.String(),
		Confidence: confidence,
	}
}
