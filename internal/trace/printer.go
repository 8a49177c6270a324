package trace

import (
	"fmt"
	"io"

	"github.com/ChuLiYu/cpu-sched/pkg/types"
)

// Printer writes the banner, trace lines and completion lines of a run.
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Banner prints the header line identifying the discipline and the job source.
func (p *Printer) Banner(alg types.Algorithm, quantum int, source string) {
	if alg == types.AlgorithmRoundRobin {
		p.printf("sched %s %d for %s\n", alg.Flag(), quantum, source)
		return
	}
	p.printf("sched %s for %s\n", alg.Flag(), source)
}

// Emit prints one trace line.
func (p *Printer) Emit(ev Event) {
	p.printf("%s\n", ev)
}

// Completions prints one "<id> <completion>" line per job, in the given order.
func (p *Printer) Completions(cs []types.Completion) {
	for _, c := range cs {
		p.printf("%s\n", c)
	}
}

// Err returns the first write error, if any.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
