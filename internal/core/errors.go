package core

import "errors"

// Failure taxonomy for the message-handling pipeline. Every error leaving this
// package wraps exactly one of these sentinels; the API layer maps them to
// status codes in a single place.
var (
	// ErrValidation marks user-fixable input problems (empty message, empty
	// title). Raised before any retrieval or persistence work.
	ErrValidation = errors.New("invalid input")

	// ErrRetrieval marks embedder or vector index failures during context
	// retrieval. No partial results accompany it.
	ErrRetrieval = errors.New("context retrieval failed")

	// ErrUpstream marks a failed completion call.
	ErrUpstream = errors.New("model call failed")

	// ErrUpstreamTimeout marks a completion call that exceeded its deadline.
	// Nothing is persisted when it occurs.
	ErrUpstreamTimeout = errors.New("model call timed out")

	// ErrAuthorization marks cross-user chat access. The message never reveals
	// whether the chat id exists.
	ErrAuthorization = errors.New("chat not found")

	// ErrPersistence marks database failures. When it follows a successful
	// completion the reply is still surfaced, flagged as unsaved.
	ErrPersistence = errors.New("persistence failed")
)
