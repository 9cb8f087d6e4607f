package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxvid/voxvid/pkg/akool"
	"github.com/voxvid/voxvid/pkg/config"
	"github.com/voxvid/voxvid/pkg/store"
	"github.com/voxvid/voxvid/pkg/ttsopenai"
)

// fakeProviders stands in for both TTSOpenAI and Akool behind one httptest
// server, counting the calls the relay makes.
type fakeProviders struct {
	srv *httptest.Server

	ttsCalls   atomic.Int32
	videoCalls atomic.Int32
	ttsStatus  int

	lastVideoBody atomic.Value // string
}

func newFakeProviders(t *testing.T) *fakeProviders {
	t.Helper()
	f := &fakeProviders{ttsStatus: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/text-to-speech":
			f.ttsCalls.Add(1)
			w.WriteHeader(f.ttsStatus)
		case "/oauth2/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		case "/api/open/v3/talkingavatar/create":
			f.videoCalls.Add(1)
			body := make([]byte, r.ContentLength)
			r.Body.Read(body)
			f.lastVideoBody.Store(string(body))
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected provider path %s", r.URL.Path)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProviders) videoBody() string {
	if v := f.lastVideoBody.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func newTestService(t *testing.T) (*Service, store.JobStore, *fakeProviders) {
	t.Helper()
	providers := newFakeProviders(t)

	cfg := &config.Config{}
	cfg.Relay.CallbackBaseURL = "https://relay.example.com"
	cfg.TTSOpenAI = config.TTSOpenAIConfig{APIKey: "k", BaseURL: providers.srv.URL}
	cfg.Akool = config.AkoolConfig{ClientID: "id", ClientSecret: "sec", BaseURL: providers.srv.URL}

	jobs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { jobs.Close() })

	tts := ttsopenai.NewClient(cfg.TTSOpenAI.APIKey, cfg.TTSOpenAI.BaseURL, 5*time.Second)
	video := akool.NewClient(cfg.Akool.ClientID, cfg.Akool.ClientSecret, cfg.Akool.BaseURL, 5*time.Second)
	return NewService(cfg, jobs, tts, video), jobs, providers
}

func speechCallback(text, voice, mediaURL string) TTSCallback {
	var cb TTSCallback
	cb.Data.TTSInput = text
	cb.Data.VoiceID = voice
	cb.Data.MediaURL = mediaURL
	return cb
}

func TestSubmitValidatesInput(t *testing.T) {
	svc, _, providers := newTestService(t)

	_, err := svc.Submit(context.Background(), GenerateRequest{VoiceID: "OA001", AvatarID: "A1"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "testimonial")

	_, err = svc.Submit(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	assert.EqualValues(t, 0, providers.ttsCalls.Load(), "no provider call before validation passes")
}

func TestSubmitStoresExactlyOnePendingJob(t *testing.T) {
	svc, jobs, providers := newTestService(t)

	id, err := svc.Submit(context.Background(), GenerateRequest{
		Testimonial: "Great service!",
		VoiceID:     "OA001",
		AvatarID:    "A1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.EqualValues(t, 1, providers.ttsCalls.Load())

	job, err := jobs.FindLatest(context.Background(), "Great service!", "OA001")
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "A1", job.AvatarID)
}

func TestSubmitProviderFailureStoresNothing(t *testing.T) {
	svc, jobs, providers := newTestService(t)
	providers.ttsStatus = http.StatusBadGateway

	_, err := svc.Submit(context.Background(), GenerateRequest{
		Testimonial: "Great service!",
		VoiceID:     "OA001",
		AvatarID:    "A1",
	})
	assert.ErrorIs(t, err, ErrProvider)

	_, err = jobs.FindLatest(context.Background(), "Great service!", "OA001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSpeechReadyChainsIntoVideoGeneration(t *testing.T) {
	svc, jobs, providers := newTestService(t)
	ctx := context.Background()

	id, err := svc.Submit(ctx, GenerateRequest{Testimonial: "Great service!", VoiceID: "OA001", AvatarID: "A1"})
	require.NoError(t, err)

	err = svc.HandleSpeechReady(ctx, speechCallback("Great service!", "OA001", "https://cdn.example.com/audio.wav"))
	require.NoError(t, err)

	assert.EqualValues(t, 1, providers.videoCalls.Load())
	body := providers.videoBody()
	assert.Contains(t, body, `"avatar_id":"A1"`)
	assert.Contains(t, body, "https://cdn.example.com/audio.wav")
	assert.Contains(t, body, "/api/akool-webhook?job="+id)

	// The job is consumed exactly once.
	_, err = jobs.FindLatest(ctx, "Great service!", "OA001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSpeechReadyUnmatchedIsTolerated(t *testing.T) {
	svc, _, providers := newTestService(t)

	err := svc.HandleSpeechReady(context.Background(),
		speechCallback("Great service!", "OA001", "https://cdn.example.com/audio.wav"))
	assert.ErrorIs(t, err, ErrUnmatchedCallback)
	assert.EqualValues(t, 0, providers.videoCalls.Load())
}

func TestSpeechReadyMissingFieldsIsMalformed(t *testing.T) {
	svc, jobs, providers := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, GenerateRequest{Testimonial: "Great service!", VoiceID: "OA001", AvatarID: "A1"})
	require.NoError(t, err)

	err = svc.HandleSpeechReady(ctx, speechCallback("", "OA001", "https://cdn.example.com/audio.wav"))
	assert.ErrorIs(t, err, ErrMalformedCallback)

	// Missing media_url: malformed, and the pending job must not be consumed.
	err = svc.HandleSpeechReady(ctx, speechCallback("Great service!", "OA001", ""))
	assert.ErrorIs(t, err, ErrMalformedCallback)

	_, err = jobs.FindLatest(ctx, "Great service!", "OA001")
	assert.NoError(t, err, "job survives a malformed callback")
	assert.EqualValues(t, 0, providers.videoCalls.Load())
}

func TestDuplicateSubmissionsConsumeLatestFirst(t *testing.T) {
	svc, jobs, providers := newTestService(t)
	ctx := context.Background()

	id1, err := svc.Submit(ctx, GenerateRequest{Testimonial: "Great service!", VoiceID: "OA001", AvatarID: "A1"})
	require.NoError(t, err)
	// Distinct created_at for a deterministic latest.
	time.Sleep(5 * time.Millisecond)
	id2, err := svc.Submit(ctx, GenerateRequest{Testimonial: "Great service!", VoiceID: "OA001", AvatarID: "A2"})
	require.NoError(t, err)

	cb := speechCallback("Great service!", "OA001", "https://cdn.example.com/audio.wav")
	require.NoError(t, svc.HandleSpeechReady(ctx, cb))
	assert.Contains(t, providers.videoBody(), "job="+id2)

	// The older duplicate remains resolvable by a second webhook.
	remaining, err := jobs.FindLatest(ctx, "Great service!", "OA001")
	require.NoError(t, err)
	assert.Equal(t, id1, remaining.ID)

	require.NoError(t, svc.HandleSpeechReady(ctx, cb))
	assert.Contains(t, providers.videoBody(), "job="+id1)

	// Redelivery after both are consumed is tolerated and calls no provider.
	err = svc.HandleSpeechReady(ctx, cb)
	assert.ErrorIs(t, err, ErrUnmatchedCallback)
	assert.EqualValues(t, 2, providers.videoCalls.Load())
}

func TestVideoSubmissionFailureIsNotSurfaced(t *testing.T) {
	svc, jobs, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Submit(ctx, GenerateRequest{Testimonial: "Great service!", VoiceID: "OA001", AvatarID: "A1"})
	require.NoError(t, err)

	// Point the video provider at a dead endpoint: submission fails, but the
	// webhook handler still succeeds and records the failure.
	badVideo := akool.NewClient("id", "sec", "http://127.0.0.1:0", time.Second)
	svc.akool = badVideo

	err = svc.HandleSpeechReady(ctx, speechCallback("Great service!", "OA001", "https://cdn.example.com/audio.wav"))
	assert.NoError(t, err)

	res, err := jobs.Result(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)
}

func TestVideoReadyRecordsResultAndNotifies(t *testing.T) {
	svc, jobs, _ := newTestService(t)
	ctx := context.Background()

	var notified atomic.Value
	svc.SetNotifier(func(res store.VideoResult) { notified.Store(res) })

	var cb VideoCallback
	cb.Data.URL = "https://cdn.example.com/final.mp4"
	svc.HandleVideoReady(ctx, "job-1", cb)

	res, err := jobs.Result(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, "https://cdn.example.com/final.mp4", res.VideoURL)

	got, ok := notified.Load().(store.VideoResult)
	require.True(t, ok)
	assert.Equal(t, "job-1", got.JobID)
}

func TestVideoReadyWithoutJobReferenceIsLogOnly(t *testing.T) {
	svc, jobs, _ := newTestService(t)

	svc.HandleVideoReady(context.Background(), "", VideoCallback{})

	_, err := jobs.Result(context.Background(), "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweeperPurgesOrphans(t *testing.T) {
	svc, jobs, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, GenerateRequest{Testimonial: "orphaned", VoiceID: "OA001", AvatarID: "A1"})
	require.NoError(t, err)

	sw := NewSweeper(jobs, 0, time.Hour)
	sw.sweep(ctx)

	_, err = jobs.FindLatest(ctx, "orphaned", "OA001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
