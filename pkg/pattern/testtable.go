package pattern

// StatusWarning marks an advisory row. Every other row carries a test
// outcome: passed, failed, error, skipped or unknown.
const StatusWarning = "warning"

// TestTable represents test results with status and timing.
type TestTable struct {
	Label   string
	Source  string // contract or run the rows belong to, for grouping
	Results []TestTableItem
}

// TestTableItem is a single test or run.
type TestTableItem struct {
	Name     string
	Status   string // a test outcome, or StatusWarning
	Duration string // formatted duration
	Count    int    // number of tests (run-level rows)
	Details  string // failure message or extra info
}

func (t *TestTable) Type() PatternType { return PatternTypeTestTable }
