// Package store persists pipeline state between the asynchronous legs of the
// generation flow: pending jobs awaiting their TTS callback, and completed
// video results awaiting pickup by the client.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no row matches a lookup or take.
var ErrNotFound = errors.New("store: not found")

// PendingJob is the context persisted between accepting a generation request
// and receiving the TTS completion webhook. The TTS provider echoes only the
// input text and voice id back, so (Text, VoiceID) is the correlation key;
// ID is the storage identity and the client reference passed to the video
// provider.
type PendingJob struct {
	ID        string
	Text      string
	VoiceID   string
	AvatarID  string
	CreatedAt time.Time
}

// VideoResult records the terminal outcome of a job once the video provider
// reports completion.
type VideoResult struct {
	JobID       string
	Status      string
	VideoURL    string
	CompletedAt time.Time
}

// JobStore is the durable mapping from correlation key to pipeline context.
//
// Put enforces no uniqueness: two requests with the same text and voice are
// both stored and resolved latest-first. Take is the atomic match-and-consume
// used by the TTS completion handler; FindLatest and Remove remain for
// callers that need the two-step form.
type JobStore interface {
	Put(ctx context.Context, job PendingJob) error
	FindLatest(ctx context.Context, text, voiceID string) (PendingJob, error)
	Take(ctx context.Context, text, voiceID string) (PendingJob, error)
	Remove(ctx context.Context, id string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	SaveResult(ctx context.Context, res VideoResult) error
	Result(ctx context.Context, jobID string) (VideoResult, error)

	Close() error
}
