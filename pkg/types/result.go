package types

import "time"

// RenderedArtifact is one rendered output file destined for commit into
// the target repository.
type RenderedArtifact struct {
	// Path is the output path relative to the repository root.
	Path string

	// Content is the rendered text.
	Content string
}

// ValidationResult is the outcome of one guardrail check on one artifact.
type ValidationResult struct {
	Artifact string
	Passed   bool
	Message  string
}

// RepoContext tracks the working copy state for one row. It is created at
// the start of processing a row and left on disk for inspection afterwards.
type RepoContext struct {
	// WorkDir is the local workspace path for the clone.
	WorkDir string

	// BaseBranch is the row's declared base branch.
	BaseBranch string

	// ChangeBranch is the deterministic branch holding the propagated
	// artifacts.
	ChangeBranch string

	// BranchExistedRemotely is true when the change branch was already
	// pushed by a previous run and was resumed rather than created.
	BranchExistedRemotely bool
}

// RowResult is the per-row outcome reported to the caller.
type RowResult struct {
	App      string        `json:"app"`
	RepoURL  string        `json:"repo"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	PRURL    string        `json:"pr_url,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the aggregate outcome of one propagation run.
type Report struct {
	RunID        string      `json:"run_id"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
	DryRun       bool        `json:"dry_run"`
	Results      []RowResult `json:"results"`
	SuccessCount int         `json:"success_count"`
	PRCount      int         `json:"pr_count"`
}

// Add records a row result and updates the aggregate counts.
func (r *Report) Add(result RowResult) {
	r.Results = append(r.Results, result)
	if result.Success {
		r.SuccessCount++
	}
	if result.PRURL != "" {
		r.PRCount++
	}
}

// FailureCount returns the number of failed rows.
func (r *Report) FailureCount() int {
	return len(r.Results) - r.SuccessCount
}
