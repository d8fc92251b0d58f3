package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"siphon/internal/sink"
	"siphon/internal/telemetry"
)

// cycleBatch is one consumer's parsed batch on its way to the sink, tagged
// with its origin buffer and the next-to-read offsets of exactly the
// messages it was built from. Intermediate commits use that snapshot, never
// the buffer's live pending state, which the polling goroutine still owns.
type cycleBatch struct {
	rows    []sink.Row
	offsets map[TopicPartition]int64
	buf     *ReadBuffer
	err     error
}

// streamCycle runs one ingestion cycle: claim the created buffers, fan their
// bounded row sources into one shared sink handle, and commit offsets only
// after everything was accepted. Returns whether any consumer stalled.
func (e *Engine) streamCycle() (bool, error) {
	w, err := e.sink.Open(e.id.String())
	if err != nil {
		return false, err
	}
	defer w.Close()

	bufs := make([]*ReadBuffer, 0, e.numCreated)
	for i := 0; i < e.numCreated; i++ {
		b := e.pool.checkout(e.settings.PollTimeout)
		if b == nil {
			// Held by a concurrent reader; work with what we have.
			break
		}
		bufs = append(bufs, b)
	}
	if len(bufs) == 0 {
		return true, nil
	}
	gauge := telemetry.BuffersInUse.WithLabelValues(e.id.String())
	gauge.Add(float64(len(bufs)))
	defer func() {
		for _, b := range bufs {
			e.pool.checkin(b)
		}
		gauge.Sub(float64(len(bufs)))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deadline := time.Now().Add(e.settings.FlushInterval)
	merged := make(chan cycleBatch)

	var wg sync.WaitGroup
	for _, b := range bufs {
		wg.Add(1)
		go func(b *ReadBuffer) {
			defer wg.Done()
			e.consumeInto(ctx, b, deadline, merged)
		}(b)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	// The copy step itself is not cancellable mid-row; cancellation is
	// observed at the poll boundary inside each source.
	var cycleErr error
	for batch := range merged {
		if cycleErr != nil {
			continue // drain
		}
		if batch.err != nil {
			cycleErr = batch.err
			cancel()
			continue
		}
		if err := writeRows(w, batch.rows); err != nil {
			cycleErr = err
			cancel()
			continue
		}
		telemetry.RowsIngested.WithLabelValues(e.id.String()).Add(float64(len(batch.rows)))
		if e.settings.CommitEveryBatch {
			if err := batch.buf.CommitBatch(batch.offsets); err != nil {
				cycleErr = err
				cancel()
			}
		}
	}
	if cycleErr != nil {
		// Abort before any (further) commit; the uncommitted range is
		// redelivered next cycle.
		return false, cycleErr
	}

	stalled := false
	for _, b := range bufs {
		stalled = stalled || b.Stalled()
		if err := b.Commit(); err != nil {
			return stalled, err
		}
	}
	if stalled {
		telemetry.StalledCycles.WithLabelValues(e.id.String()).Inc()
	}
	return stalled, nil
}

// consumeInto drives one buffer until its row budget, the cycle deadline or
// the cancellation flag stops it. Both limits break gracefully rather than
// erroring.
func (e *Engine) consumeInto(ctx context.Context, b *ReadBuffer, deadline time.Time, out chan<- cycleBatch) {
	b.reset()
	rowBudget := int(e.settings.MaxBlockSize)
	brokenBudget := int(e.settings.SkipBrokenMessages)
	produced := 0

	for produced < rowBudget && !e.cancelled.Load() && ctx.Err() == nil {
		if !time.Now().Before(deadline) {
			break
		}
		msgs := b.PollBatch(ctx)
		if len(msgs) == 0 {
			break
		}

		offsets := make(map[TopicPartition]int64, 1)
		rows := make([]sink.Row, 0, len(msgs))
		for _, msg := range msgs {
			offsets[TopicPartition{msg.Topic, msg.Partition}] = msg.Offset + 1
			rs, err := e.rowsFrom(msg)
			if err != nil {
				if brokenBudget > 0 {
					brokenBudget--
					telemetry.BrokenMessages.WithLabelValues(e.id.String()).Inc()
					e.log.Warn("skipping broken message", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
					continue
				}
				select {
				case out <- cycleBatch{buf: b, err: fmt.Errorf("message %s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)}:
				case <-ctx.Done():
				}
				return
			}
			rows = append(rows, rs...)
		}
		if len(rows) == 0 {
			continue
		}
		produced += len(rows)

		select {
		case out <- cycleBatch{rows: rows, offsets: offsets, buf: b}:
		case <-ctx.Done():
			return
		}
	}
}

// rowsFrom decodes one message and attaches the virtual columns every
// Kafka-fed row carries.
func (e *Engine) rowsFrom(msg Message) ([]sink.Row, error) {
	fields, err := e.parser.Parse(msg.Value)
	if err != nil {
		return nil, err
	}

	var ts, tsMs *time.Time
	if !msg.Timestamp.IsZero() {
		sec := msg.Timestamp.Truncate(time.Second)
		ms := msg.Timestamp.Truncate(time.Millisecond)
		ts, tsMs = &sec, &ms
	}
	var names []string
	var values []string
	for _, h := range msg.Headers {
		names = append(names, h.Key)
		values = append(values, string(h.Value))
	}

	rows := make([]sink.Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, sink.Row{
			Fields:       f,
			Topic:        msg.Topic,
			Key:          string(msg.Key),
			Offset:       uint64(msg.Offset),
			Partition:    uint64(msg.Partition),
			Timestamp:    ts,
			TimestampMs:  tsMs,
			HeaderNames:  names,
			HeaderValues: values,
		})
	}
	return rows, nil
}

func writeRows(w sink.Writer, rows []sink.Row) error {
	for _, r := range rows {
		if err := w.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}
