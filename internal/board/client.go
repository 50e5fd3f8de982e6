package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driveline/driveline-backend/internal/onboarding/domain"
	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Client talks to the work-management board that stores each driver as
// an item with typed columns. The board is the system of record for
// driver fields; this service reads and writes by driver ID.
type Client struct {
	baseURL    string
	apiToken   string
	boardID    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(cfg *config.BoardConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		boardID:    cfg.BoardID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

// CreateDriverRequest creates a new driver item on the board
type CreateDriverRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type driverItem struct {
	ID     string              `json:"id"`
	Fields domain.DriverFields `json:"fields"`
}

// CreateDriver creates a driver item and returns its board ID
func (c *Client) CreateDriver(ctx context.Context, req *CreateDriverRequest) (*domain.DriverFields, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/boards/%s/items", c.baseURL, c.boardID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	c.logger.Info().
		Str("email", req.Email).
		Msg("creating driver item on board")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to call board API")
		return nil, errors.Upstream("board", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp, "driver creation")
	}

	var item driverItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	item.Fields.DriverID = item.ID

	c.logger.Info().
		Str("driver_id", item.ID).
		Msg("driver item created")

	return &item.Fields, nil
}

// GetDriver fetches a driver's fields by board item ID
func (c *Client) GetDriver(ctx context.Context, driverID string) (*domain.DriverFields, error) {
	url := fmt.Sprintf("%s/boards/%s/items/%s", c.baseURL, c.boardID, driverID)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("driver_id", driverID).Msg("failed to call board API")
		return nil, errors.Upstream("board", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("driver")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp, "driver fetch")
	}

	var item driverItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	item.Fields.DriverID = item.ID

	return &item.Fields, nil
}

// UpdateFields writes a partial set of column values on a driver item.
// Only keys present in the map are touched.
func (c *Client) UpdateFields(ctx context.Context, driverID string, fields map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/boards/%s/items/%s", c.baseURL, c.boardID, driverID)
	httpReq, err := http.NewRequestWithContext(ctx, "PATCH", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("driver_id", driverID).Msg("failed to call board API")
		return errors.Upstream("board", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.errorFromResponse(resp, "driver update")
	}

	c.logger.Debug().
		Str("driver_id", driverID).
		Int("fields", len(fields)).
		Msg("driver fields updated")

	return nil
}

// RecordCheckDueDate computes the next check-due date written back to
// the board after a driving record passes underwriting.
func RecordCheckDueDate(decidedAt time.Time) time.Time {
	return decidedAt.AddDate(1, 0, 0)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) errorFromResponse(resp *http.Response, operation string) error {
	var errResp map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&errResp)
	c.logger.Error().
		Int("status", resp.StatusCode).
		Interface("error", errResp).
		Msgf("%s failed", operation)
	return errors.Upstream("board", fmt.Errorf("%s failed with status %d", operation, resp.StatusCode))
}
