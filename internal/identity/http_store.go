package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPStore is a minimal JSON-over-HTTP client for a managed identity
// service. The service owns password storage and hashing; this client only
// relays verification calls.
type HTTPStore struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPStore constructs an HTTPStore with sane defaults.
func NewHTTPStore(baseURL, apiKey string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type verifyPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyPasswordResponse struct {
	Principal string `json:"principal"`
}

type principalRequest struct {
	Principal string `json:"principal"`
}

// VerifyPassword delegates credential verification to the identity service.
// A 401 maps to ErrPasswordRejected; anything else unexpected is an I/O error.
func (s *HTTPStore) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	status, body, err := s.post(ctx, "/v1/passwords/verify", verifyPasswordRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	switch status {
	case http.StatusOK:
		var resp verifyPasswordResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("identity store returned malformed response: %w", err)
		}
		if resp.Principal == "" {
			return "", fmt.Errorf("identity store returned empty principal")
		}
		return resp.Principal, nil
	case http.StatusUnauthorized:
		return "", ErrPasswordRejected
	default:
		return "", fmt.Errorf("identity store returned status %d", status)
	}
}

// VerifySession checks the principal's session liveness.
func (s *HTTPStore) VerifySession(ctx context.Context, principal string) error {
	status, _, err := s.post(ctx, "/v1/sessions/verify", principalRequest{Principal: principal})
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusNotFound:
		return ErrSessionNotLive
	default:
		return fmt.Errorf("identity store returned status %d", status)
	}
}

// EndSession terminates the principal's session. Already-gone sessions are
// treated as success.
func (s *HTTPStore) EndSession(ctx context.Context, principal string) error {
	status, _, err := s.post(ctx, "/v1/sessions/end", principalRequest{Principal: principal})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("identity store returned status %d", status)
	}
	return nil
}

// post sends a JSON request and returns the status code and raw body.
func (s *HTTPStore) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("identity store request failed")
		return 0, nil, fmt.Errorf("identity store request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read identity store response: %w", err)
	}
	return resp.StatusCode, body, nil
}
