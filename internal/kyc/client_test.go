package kyc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/logger"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.KYCConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		WebhookSecret: "webhook-secret",
		Timeout:       5 * time.Second,
	}, logger.New("kyc-test", "test"))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req createSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "drv-100", req.Reference)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Session{
			ID:          "sess-1",
			RedirectURL: "https://verify.example.com/sess-1",
		})
	}))
	defer server.Close()

	session, err := testClient(server.URL).CreateSession(context.Background(), "drv-100", "driver@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.NotEmpty(t, session.RedirectURL)
}

func TestCreateSession_VendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateSession(context.Background(), "drv-100", "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "UPSTREAM_ERROR", appErr.Code)
}

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	body := []byte(`{"session_id":"sess-1","reference":"drv-100","status":"approved"}`)

	event, err := testClient("").VerifyWebhook(body, sign("webhook-secret", body))
	require.NoError(t, err)
	assert.Equal(t, "drv-100", event.Reference)
	assert.Equal(t, WebhookStatusApproved, event.Status)
}

func TestVerifyWebhook_BadSignature(t *testing.T) {
	body := []byte(`{"reference":"drv-100","status":"approved"}`)

	_, err := testClient("").VerifyWebhook(body, sign("wrong-secret", body))
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestVerifyWebhook_MissingReference(t *testing.T) {
	body := []byte(`{"status":"approved"}`)

	_, err := testClient("").VerifyWebhook(body, sign("webhook-secret", body))
	assert.Error(t, err)
}

func TestVerifyWebhook_MalformedBody(t *testing.T) {
	body := []byte(`not json`)

	_, err := testClient("").VerifyWebhook(body, sign("webhook-secret", body))
	assert.Error(t, err)
}
