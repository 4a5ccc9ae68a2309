package pattern

// Tail is the last lines of a captured stream.
type Tail struct {
	Label   string // "stdout", "stderr"
	Lines   []string
	Omitted int // lines dropped before Lines
}

func (t *Tail) Type() PatternType { return PatternTypeTail }
