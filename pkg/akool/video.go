package akool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Canvas layout for every generated video. The avatar fills most of a 720p
// frame, centered; the synthesized audio drives the lip sync.
const (
	frameWidth  = 1280
	frameHeight = 720

	avatarScaleX  = 0.8
	avatarScaleY  = 0.8
	avatarOffsetX = 640
	avatarOffsetY = 360
)

type element struct {
	Type     string  `json:"type"`
	AvatarID string  `json:"avatar_id,omitempty"`
	URL      string  `json:"url,omitempty"`
	ScaleX   float64 `json:"scale_x,omitempty"`
	ScaleY   float64 `json:"scale_y,omitempty"`
	OffsetX  float64 `json:"offset_x,omitempty"`
	OffsetY  float64 `json:"offset_y,omitempty"`
}

type videoRequest struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Elements   []element `json:"elements"`
	WebhookURL string    `json:"webhookUrl"`
}

// CreateTalkingAvatar submits a talking-avatar composition: the given avatar
// speaking the audio at audioURL. Completion is delivered to webhookURL; a
// nil error only means the provider accepted the job.
func (c *Client) CreateTalkingAvatar(ctx context.Context, avatarID, audioURL, webhookURL string) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(videoRequest{
		Width:  frameWidth,
		Height: frameHeight,
		Elements: []element{
			{
				Type:     "avatar",
				AvatarID: avatarID,
				ScaleX:   avatarScaleX,
				ScaleY:   avatarScaleY,
				OffsetX:  avatarOffsetX,
				OffsetY:  avatarOffsetY,
			},
			{
				Type: "audio",
				URL:  audioURL,
			},
		},
		WebhookURL: webhookURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/open/v3/talkingavatar/create", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("talking-avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("talking-avatar request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
