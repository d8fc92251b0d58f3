package sink

import (
	"fmt"
	"time"
)

// Row is one parsed record on its way into a table. Fields hold the decoded
// payload columns; the rest are the virtual columns every Kafka-fed row
// carries regardless of format.
type Row struct {
	Fields map[string]any

	Topic        string
	Key          string
	Offset       uint64
	Partition    uint64
	Timestamp    *time.Time // second resolution, nil when the broker gave none
	TimestampMs  *time.Time // millisecond resolution
	HeaderNames  []string
	HeaderValues []string // index-aligned with HeaderNames
}

// Writer is one write handle into a destination table. A handle is used by a
// single streaming cycle at a time and is not safe for concurrent WriteRow.
type Writer interface {
	WriteRow(Row) error
	Close() error
}

// Sink hands out write handles for destination tables.
type Sink interface {
	Open(table string) (Writer, error)
	Close() error
}

/*──────── registry ───────*/

type factory = func() Sink

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func New(name string) (Sink, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
