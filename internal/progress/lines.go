package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/dkoosis/verifyapi/pkg/stage"
)

// Lines writes one prefixed line per stage transition for non-interactive
// output, where a spinner would only produce escape codes.
type Lines struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLines reports to out.
func NewLines(out io.Writer) *Lines {
	return &Lines{out: out}
}

// Stage records that contract entered s. Safe for concurrent use.
func (l *Lines) Stage(contract string, s stage.Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", contract, Verb(s))
}
