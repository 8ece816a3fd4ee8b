package ingest

// Stats accumulates counters for one repository's ingestion run. Per-item
// failures are recorded here instead of aborting the run.
type Stats struct {
	Contributors      int      `json:"contributors"`
	ContributorsTotal int      `json:"contributorsTotal"`
	BotsSkipped       int      `json:"botsSkipped"`
	PRsTotal          int      `json:"prsTotal"`
	PRsProcessed      int      `json:"prsProcessed"`
	PRsSkipped        int      `json:"prsSkipped"`
	Issues            int      `json:"issues"`
	Comments          int      `json:"comments"`
	Reviews           int      `json:"reviews"`
	Files             int      `json:"files"`
	APICalls          int      `json:"apiCalls"`
	WritesSkipped     int      `json:"writesSkipped"`
	LastPRProcessed   int      `json:"lastPrProcessed"`
	Errors            []string `json:"errors"`
}

// RepoResult is the per-repository entry in a batch summary.
type RepoResult struct {
	Repository string `json:"repo"`
	Status     string `json:"status"`
	Stats      *Stats `json:"stats,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchResult summarizes one ingestion run across its repository batch.
type BatchResult struct {
	Results        []RepoResult `json:"results"`
	TotalProcessed int          `json:"totalProcessed"`
	Successful     int          `json:"successful"`
	Failed         int          `json:"failed"`
}
