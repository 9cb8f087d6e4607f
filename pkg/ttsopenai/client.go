// Package ttsopenai is a minimal client for the TTSOpenAI speech API.
// Synthesis is asynchronous: the provider accepts the request immediately and
// delivers the generated audio URL later through a webhook that echoes the
// input text and voice id.
package ttsopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type speechRequest struct {
	Input      string `json:"input"`
	VoiceID    string `json:"voice_id"`
	WebhookURL string `json:"webhook_url"`
}

// CreateSpeech submits text for synthesis. A nil error means the provider
// accepted the request, not that audio exists yet; completion arrives on the
// webhook URL.
func (c *Client) CreateSpeech(ctx context.Context, text, voiceID, webhookURL string) error {
	body, err := json.Marshal(speechRequest{
		Input:      text,
		VoiceID:    voiceID,
		WebhookURL: webhookURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tts request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
