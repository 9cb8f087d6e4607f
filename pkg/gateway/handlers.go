package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voxvid/voxvid/pkg/akool"
	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/relay"
	"github.com/voxvid/voxvid/pkg/store"
	"github.com/voxvid/voxvid/pkg/ttsopenai"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type voicesResponse struct {
	Voices []ttsopenai.Voice `json:"voices"`
}

type avatarsResponse struct {
	Avatars []json.RawMessage `json:"avatars"`
}

type generateResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

type videoResultResponse struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	VideoURL    string `json:"video_url,omitempty"`
	CompletedAt string `json:"completed_at"`
}

// errorResponse is the JSON error envelope for client-facing endpoints.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: apiVersion})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, voicesResponse{Voices: ttsopenai.Voices()})
}

func (s *Server) handleAvatars(w http.ResponseWriter, r *http.Request) {
	avatars, err := s.video.ListAvatars(r.Context())
	if err != nil {
		logger.ErrorCF("gateway", "avatar listing failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusBadGateway, "failed to fetch avatars", err.Error())
		return
	}
	if avatars == nil {
		avatars = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, avatarsResponse{Avatars: avatars})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req relay.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	jobID, err := s.relay.Submit(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	case errors.Is(err, relay.ErrProvider), errors.Is(err, akool.ErrAuth):
		writeError(w, http.StatusBadGateway, "failed to generate video", err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, "failed to generate video", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, generateResponse{
		Message: "generation started, the video will be available once both providers complete",
		JobID:   jobID,
	})
}

// handleTTSWebhook receives the TTS provider's completion callback. Anything
// except a malformed payload is acknowledged with 200 so the provider does
// not retry and duplicate side effects.
func (s *Server) handleTTSWebhook(w http.ResponseWriter, r *http.Request) {
	var cb relay.TTSCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback body", err.Error())
		return
	}

	err := s.relay.HandleSpeechReady(r.Context(), cb)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, relay.ErrMalformedCallback):
		writeError(w, http.StatusBadRequest, "malformed callback", err.Error())
	case errors.Is(err, relay.ErrUnmatchedCallback):
		logger.WarnCF("gateway", "unmatched tts callback", map[string]any{"error": err.Error()})
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusInternalServerError, "callback processing failed", err.Error())
	}
}

// handleVideoWebhook acknowledges the video provider's callback. The payload
// shape is the provider's own; the job reference travels in the query string
// this service put into the callback URL.
func (s *Server) handleVideoWebhook(w http.ResponseWriter, r *http.Request) {
	var cb relay.VideoCallback
	_ = json.NewDecoder(r.Body).Decode(&cb)

	s.relay.HandleVideoReady(r.Context(), r.URL.Query().Get("job"), cb)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleVideoResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no result for job", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load result", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, videoResultResponse{
		JobID:       res.JobID,
		Status:      res.Status,
		VideoURL:    res.VideoURL,
		CompletedAt: res.CompletedAt.UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF("gateway", "failed to encode JSON response", map[string]any{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
