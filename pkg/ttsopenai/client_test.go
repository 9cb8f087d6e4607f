package ttsopenai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSpeechSendsExpectedRequest(t *testing.T) {
	var got speechRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, 5*time.Second)
	err := c.CreateSpeech(context.Background(), "Great service!", "OA001", "https://relay.example.com/api/tts-webhook")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "Great service!", got.Input)
	assert.Equal(t, "OA001", got.VoiceID)
	assert.Equal(t, "https://relay.example.com/api/tts-webhook", got.WebhookURL)
}

func TestCreateSpeechRejectedByProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL, 5*time.Second)
	err := c.CreateSpeech(context.Background(), "hi", "OA001", "https://relay.example.com/api/tts-webhook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 402")
}

func TestVoicesCatalogIsStable(t *testing.T) {
	voices := Voices()
	require.NotEmpty(t, voices)
	assert.Equal(t, "OA001", voices[0].VoiceID)
	for _, v := range voices {
		assert.NotEmpty(t, v.VoiceID)
		assert.NotEmpty(t, v.Name)
	}
}
