package pipeline

import "errors"

// Fatal precondition errors. These abort a run before any mutation; per-source
// and per-item failures are absorbed into the run summary instead.
var (
	// ErrNoBaseline means collection was requested with no completed
	// baseline. The caller must set a tracking window first.
	ErrNoBaseline = errors.New("pipeline: no completed baseline set")

	// ErrClassifierNotConfigured means the classification service
	// credentials are missing. Collection refuses to run rather than
	// silently storing everything unclassified.
	ErrClassifierNotConfigured = errors.New("pipeline: classifier not configured")
)
