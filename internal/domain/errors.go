package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Episode boundary errors
	ErrInputTooLong = errors.New("text exceeds maximum length")

	// Job orchestration errors
	ErrAlreadyRunning = errors.New("training is already in progress")
	ErrNoActiveJob    = errors.New("no active training process")
	ErrJobNotFound    = errors.New("training job not found")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownGrader = errors.New("unknown grader kind")
)
