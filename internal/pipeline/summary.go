package pipeline

// SourceResult is one source's contribution to a collection run.
type SourceResult struct {
	Source string `json:"source"`
	Found  int    `json:"found"`
	Stored int    `json:"stored"`
	Error  string `json:"error,omitempty"`
}

// RunSummary aggregates one collection invocation. It is returned to the
// caller and never persisted; item timestamps are the only durable trace of
// a run.
type RunSummary struct {
	SourcesProcessed int            `json:"sourcesProcessed"`
	ItemsFound       int            `json:"itemsFound"`
	ItemsStored      int            `json:"itemsStored"`
	Results          []SourceResult `json:"results"`
}

func (s *RunSummary) add(r SourceResult) {
	s.SourcesProcessed++
	s.ItemsFound += r.Found
	s.ItemsStored += r.Stored
	s.Results = append(s.Results, r)
}

// Errors returns the per-source error messages recorded during the run.
func (s *RunSummary) Errors() []string {
	var errs []string
	for _, r := range s.Results {
		if r.Error != "" {
			errs = append(errs, r.Source+": "+r.Error)
		}
	}
	return errs
}
