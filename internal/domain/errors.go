package domain

import "errors"

// Sentinel errors used across layers.
var (
	// ErrTransportFailed marks a remote synthesis or playback failure.
	// It triggers the local fallback and is not surfaced on its own.
	ErrTransportFailed = errors.New("speech transport failed")

	// ErrSynthesisUnavailable is returned when every transport failed
	// for an announcement.
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

	// ErrPlaybackAborted is returned when an announcement was interrupted
	// by Stop before or while it was being spoken.
	ErrPlaybackAborted = errors.New("playback aborted")

	// ErrQueueClosed is returned for announcements enqueued after Close.
	ErrQueueClosed = errors.New("announcement queue closed")

	// ErrNotFound is returned when the backend has no such resource.
	ErrNotFound = errors.New("not found")
)
