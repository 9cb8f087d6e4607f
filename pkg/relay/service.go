// Package relay implements the asynchronous job-correlation pipeline: a
// generation request submits TTS and parks its context in the job store; the
// TTS completion webhook consumes that context and chains into the video
// provider; the video completion webhook records the final result.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxvid/voxvid/pkg/akool"
	"github.com/voxvid/voxvid/pkg/config"
	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/store"
	"github.com/voxvid/voxvid/pkg/ttsopenai"
)

// Service wires the providers and the job store into the pipeline. The
// optional notifier receives every recorded video result (the gateway uses it
// to push completions to WebSocket watchers).
type Service struct {
	cfg      *config.Config
	store    store.JobStore
	tts      *ttsopenai.Client
	akool    *akool.Client
	notifier func(store.VideoResult)
}

func NewService(cfg *config.Config, jobs store.JobStore, tts *ttsopenai.Client, video *akool.Client) *Service {
	return &Service{
		cfg:   cfg,
		store: jobs,
		tts:   tts,
		akool: video,
	}
}

// SetNotifier registers a callback invoked after each video result is saved.
func (s *Service) SetNotifier(fn func(store.VideoResult)) {
	s.notifier = fn
}

// GenerateRequest is a client submission. All fields are required.
type GenerateRequest struct {
	Testimonial string `json:"testimonial"`
	VoiceID     string `json:"voiceId"`
	AvatarID    string `json:"avatarId"`
}

// Submit starts the pipeline: the TTS request is sent with this service's
// webhook as callback, and on acceptance exactly one pending job is stored.
// The returned id identifies the job for /api/videos polling and watching.
func (s *Service) Submit(ctx context.Context, req GenerateRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	if err := s.tts.CreateSpeech(ctx, req.Testimonial, req.VoiceID, s.cfg.TTSWebhookURL()); err != nil {
		return "", fmt.Errorf("%w: tts submission: %v", ErrProvider, err)
	}

	job := store.PendingJob{
		ID:        uuid.New().String(),
		Text:      req.Testimonial,
		VoiceID:   req.VoiceID,
		AvatarID:  req.AvatarID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("storing pending job: %w", err)
	}

	logger.InfoCF("relay", "generation accepted", map[string]any{
		"job_id": job.ID,
		"voice":  job.VoiceID,
		"avatar": job.AvatarID,
	})
	return job.ID, nil
}

func validate(req GenerateRequest) error {
	var missing []string
	if strings.TrimSpace(req.Testimonial) == "" {
		missing = append(missing, "testimonial")
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		missing = append(missing, "voiceId")
	}
	if strings.TrimSpace(req.AvatarID) == "" {
		missing = append(missing, "avatarId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// TTSCallback is the TTS provider's completion payload. The provider echoes
// the input text and voice id, which together form the correlation key.
type TTSCallback struct {
	Data struct {
		TTSInput string `json:"tts_input"`
		VoiceID  string `json:"voice_id"`
		MediaURL string `json:"media_url"`
	} `json:"data"`
}

// HandleSpeechReady resumes the pipeline for a completed TTS job: it consumes
// the most recent matching pending job and submits the video generation.
//
// A missing field is ErrMalformedCallback; a payload with no matching job is
// ErrUnmatchedCallback, which callers acknowledge with 200 so the provider
// does not retry. Failure of the video submission itself is logged but not
// returned — there is no client connection left to surface it to.
func (s *Service) HandleSpeechReady(ctx context.Context, cb TTSCallback) error {
	text := cb.Data.TTSInput
	voice := cb.Data.VoiceID
	if text == "" || voice == "" {
		return fmt.Errorf("%w: tts_input and voice_id are required", ErrMalformedCallback)
	}
	if cb.Data.MediaURL == "" {
		return fmt.Errorf("%w: media_url is required", ErrMalformedCallback)
	}

	job, err := s.store.Take(ctx, text, voice)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: voice=%s", ErrUnmatchedCallback, voice)
		}
		return fmt.Errorf("resolving pending job: %w", err)
	}

	logger.InfoCF("relay", "tts completed, submitting video generation", map[string]any{
		"job_id": job.ID,
		"avatar": job.AvatarID,
	})

	err = s.akool.CreateTalkingAvatar(ctx, job.AvatarID, cb.Data.MediaURL, s.cfg.VideoWebhookURL(job.ID))
	if err != nil {
		// The original client has no open connection; record the failure so
		// it is at least observable via the result endpoints.
		logger.ErrorCF("relay", "video submission failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		s.recordResult(ctx, store.VideoResult{
			JobID:       job.ID,
			Status:      "failed",
			CompletedAt: time.Now().UTC(),
		})
		return nil
	}
	return nil
}

// VideoCallback is the video provider's completion payload. Only the fields
// the relay consumes are modeled; the rest of the payload is ignored.
type VideoCallback struct {
	Data struct {
		Status   int    `json:"status"`
		URL      string `json:"url"`
		VideoURL string `json:"video_url"`
	} `json:"data"`
}

// HandleVideoReady terminates the pipeline. The webhook is always
// acknowledged; when the callback URL carried a job id, the outcome is
// persisted and pushed to watchers.
func (s *Service) HandleVideoReady(ctx context.Context, jobID string, cb VideoCallback) {
	url := cb.Data.URL
	if url == "" {
		url = cb.Data.VideoURL
	}

	logger.InfoCF("relay", "video webhook received", map[string]any{
		"job_id": jobID,
		"status": cb.Data.Status,
	})

	if jobID == "" {
		return
	}

	status := "completed"
	if url == "" {
		status = "failed"
	}
	s.recordResult(ctx, store.VideoResult{
		JobID:       jobID,
		Status:      status,
		VideoURL:    url,
		CompletedAt: time.Now().UTC(),
	})
}

func (s *Service) recordResult(ctx context.Context, res store.VideoResult) {
	if err := s.store.SaveResult(ctx, res); err != nil {
		logger.ErrorCF("relay", "failed to save video result", map[string]any{
			"job_id": res.JobID,
			"error":  err.Error(),
		})
		return
	}
	if s.notifier != nil {
		s.notifier(res)
	}
}
