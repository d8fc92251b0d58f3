package engine

import (
	"context"

	"siphon/internal/config"
	"siphon/internal/sink"
)

// RowSource is one consumer's ad-hoc read handle. Release returns the buffer
// to the pool; offsets consumed through the source are committed then.
type RowSource struct {
	e   *Engine
	buf *ReadBuffer
}

// Read claims every currently-free consumer and returns a row source per
// claimed buffer. All consumers are used at once so a read sees messages
// from all partitions; claiming never blocks.
func (e *Engine) Read() []*RowSource {
	if e.numCreated == 0 {
		return nil
	}
	sources := make([]*RowSource, 0, e.numCreated)
	for i := 0; i < e.numCreated; i++ {
		b := e.pool.checkoutNoWait()
		if b == nil {
			break
		}
		b.reset()
		sources = append(sources, &RowSource{e: e, buf: b})
	}
	return sources
}

// Next pulls one batch and decodes it. A nil, nil return means the poll
// budget expired without data.
func (s *RowSource) Next(ctx context.Context) ([]sink.Row, error) {
	msgs := s.buf.PollBatch(ctx)
	if len(msgs) == 0 {
		return nil, nil
	}
	var rows []sink.Row
	for _, msg := range msgs {
		rs, err := s.e.rowsFrom(msg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, rs...)
	}
	return rows, nil
}

// Release commits what was consumed and returns the buffer.
func (s *RowSource) Release() error {
	err := s.buf.Commit()
	s.e.pool.checkin(s.buf)
	return err
}

// VirtualColumns lists the implicit columns present on every row regardless
// of the declared schema.
func VirtualColumns() []config.ColumnSpec {
	return []config.ColumnSpec{
		{Name: "_topic", Type: "String"},
		{Name: "_key", Type: "String"},
		{Name: "_offset", Type: "UInt64"},
		{Name: "_partition", Type: "UInt64"},
		{Name: "_timestamp", Type: "Nullable(DateTime)"},
		{Name: "_timestamp_ms", Type: "Nullable(DateTime64(3))"},
		{Name: "_headers.name", Type: "Array(String)"},
		{Name: "_headers.value", Type: "Array(String)"},
	}
}
