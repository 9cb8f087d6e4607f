package relay

import "errors"

// The relay's failure taxonomy. Auth failures surface as akool.ErrAuth from
// the provider client; everything else the pipeline can produce is one of
// these, wrapped with detail.
var (
	// ErrValidation marks a client request missing a required field.
	ErrValidation = errors.New("validation failed")

	// ErrProvider marks a rejected or failed outbound provider call.
	ErrProvider = errors.New("provider request failed")

	// ErrMalformedCallback marks a webhook payload missing required fields.
	ErrMalformedCallback = errors.New("malformed callback payload")

	// ErrUnmatchedCallback marks a webhook with no pending job to resume.
	// Tolerated: the webhook is still acknowledged so the provider does not
	// retry it.
	ErrUnmatchedCallback = errors.New("no pending job matches callback")
)
