// Package akool is a client for the Akool video-generation API. It owns the
// OAuth2 client-credentials token for the provider and exposes the two calls
// the relay needs: listing avatars and submitting a talking-avatar video.
package akool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrAuth is returned when a bearer token could not be obtained. Callers must
// treat it as a hard failure of the operation they were attempting.
var ErrAuth = errors.New("akool: credential exchange failed")

const (
	// tokenValidity is assumed because the token response does not reliably
	// carry an expiry.
	tokenValidity = time.Hour
	// tokenSafetyMargin forces a refresh shortly before assumed expiry.
	tokenSafetyMargin = 60 * time.Second
)

type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(clientID, clientSecret, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		http:         &http.Client{Timeout: timeout},
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Token returns a bearer token with at least the safety margin of validity
// left, refreshing it from the provider when needed. A failed refresh leaves
// any previously cached token in place and returns ErrAuth.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expiresAt) > tokenSafetyMargin {
		return c.token, nil
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrAuth, resp.StatusCode, string(respBody))
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: invalid token response", ErrAuth)
	}

	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(tokenValidity)
	return c.token, nil
}

// ListAvatars fetches the available avatars. The provider nests the list
// under data.result; any shape mismatch degrades to an empty list rather
// than an error.
func (c *Client) ListAvatars(ctx context.Context) ([]json.RawMessage, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/open/v3/avatar/list", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("avatar list failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Data struct {
			Result []json.RawMessage `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return []json.RawMessage{}, nil
	}
	if payload.Data.Result == nil {
		return []json.RawMessage{}, nil
	}
	return payload.Data.Result, nil
}
