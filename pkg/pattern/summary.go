package pattern

// SummaryKind identifies what a summary describes so renderers can dispatch
// without inspecting labels.
type SummaryKind string

const (
	SummaryKindRun     SummaryKind = "run"
	SummaryKindBatch   SummaryKind = "batch"
	SummaryKindHistory SummaryKind = "history"
)

// Summary represents high-level metrics and counts.
type Summary struct {
	Label   string
	Kind    SummaryKind
	Metrics []SummaryItem
	// Runs describes each run or contract covered, for machine-readable
	// output. Human renderers use Metrics instead.
	Runs []RunRef `json:"-"`
}

// RunRef identifies one run and how it ended. A run that aborted before
// producing results has Status "aborted" and the failing Stage.
type RunRef struct {
	Contract  string         `json:"contract"`
	RunID     string         `json:"run_id,omitempty"`
	SuiteKind string         `json:"suite_kind,omitempty"`
	Status    string         `json:"status"`
	Source    string         `json:"source,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	OutputDir string         `json:"output_dir,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RunAborted is the RunRef status of a run that stopped at a stage.
const RunAborted = "aborted"

// SummaryItem is a single metric in a summary.
type SummaryItem struct {
	Label string // e.g., "Passed", "Failed", "Source"
	Value string // formatted value
	Kind  string // "success", "error", "warning" or "info"; picks the color
}

func (s *Summary) Type() PatternType { return PatternTypeSummary }
