package pattern

// Error reports a run that stopped before producing results.
type Error struct {
	Source  string // contract or run the failure belongs to
	Stage   string // pipeline stage that failed
	Message string
}

func (e *Error) Type() PatternType { return PatternTypeError }
