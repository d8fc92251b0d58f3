package sink

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stdout prints every row's position marker; a debugging sink.
type Stdout struct {
	Delay        time.Duration // artificial per-row delay
	PrintCounter bool          // prepend seq#
}

var seq uint64

func (s *Stdout) Open(table string) (Writer, error) {
	return &stdoutWriter{sink: s, table: table}, nil
}

func (s *Stdout) Close() error { return nil }

type stdoutWriter struct {
	sink  *Stdout
	table string
}

func (w *stdoutWriter) WriteRow(r Row) error {
	if d := w.sink.Delay; d > 0 {
		time.Sleep(d)
	}
	if w.sink.PrintCounter {
		fmt.Printf("[%s %06d] %s[%d]@%d\n", w.table, atomic.AddUint64(&seq, 1), r.Topic, r.Partition, r.Offset)
	} else {
		fmt.Printf("[%s] %s[%d]@%d\n", w.table, r.Topic, r.Partition, r.Offset)
	}
	return nil
}

func (w *stdoutWriter) Close() error { return nil }

func init() { Register("stdout", func() Sink { return &Stdout{} }) }
