// Package fetch retrieves raw content from heterogeneous sources — RSS/Atom
// feeds and search-engine-indexed social posts — and normalizes it into one
// candidate record shape for the collection pipeline.
package fetch

import "time"

// Candidate is a uniform record produced by either fetch path before
// deduplication and classification. Platform and PostID are set only on the
// social path.
type Candidate struct {
	URL                string
	Title              string
	Body               string
	Published          time.Time
	PublishedEstimated bool
	Platform           string
	PostID             string
}
