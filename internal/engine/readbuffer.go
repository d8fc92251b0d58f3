package engine

import (
	"context"
	"time"

	"siphon/internal/telemetry"
)

type TopicPartition struct {
	Topic     string
	Partition int32
}

type Header struct {
	Key   string
	Value []byte
}

// Message is one record pulled from the broker.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time // zero when the broker supplied none
	Headers   []Header
}

// Consumer is the pull side of one broker client binding. saramaConsumer is
// the production implementation; tests substitute fakes.
type Consumer interface {
	// Poll returns the next message, or ok=false once timeout elapses
	// without one.
	Poll(ctx context.Context, timeout time.Duration) (msg Message, ok bool)
	// CommitOffsets persists the given next-to-read offsets on the broker.
	CommitOffsets(offsets map[TopicPartition]int64) error
	Close() error
}

// ReadBuffer wraps one consumer for use by a single streaming cycle at a
// time. Exclusive use is enforced by the buffer pool, not by locking here.
type ReadBuffer struct {
	consumer    Consumer
	table       string
	batchSize   int
	pollTimeout time.Duration

	stalled bool
	pending map[TopicPartition]int64 // next offset to commit, per partition
}

func newReadBuffer(c Consumer, table string, batchSize int, pollTimeout time.Duration) *ReadBuffer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &ReadBuffer{
		consumer:    c,
		table:       table,
		batchSize:   batchSize,
		pollTimeout: pollTimeout,
		pending:     make(map[TopicPartition]int64),
	}
}

// reset prepares the buffer for a new cycle. Offsets still pending from an
// aborted cycle are dropped uncommitted, which is what makes redelivery (not
// loss) the failure mode.
func (b *ReadBuffer) reset() {
	b.stalled = false
	clear(b.pending)
}

// PollBatch pulls up to the configured batch size, spending at most the poll
// timeout in total. An empty result marks the buffer stalled.
func (b *ReadBuffer) PollBatch(ctx context.Context) []Message {
	deadline := time.Now().Add(b.pollTimeout)
	msgs := make([]Message, 0, b.batchSize)
	for len(msgs) < b.batchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, ok := b.consumer.Poll(ctx, remaining)
		if !ok {
			break
		}
		msgs = append(msgs, msg)
		b.pending[TopicPartition{msg.Topic, msg.Partition}] = msg.Offset + 1
	}
	b.stalled = len(msgs) == 0
	if n := len(msgs); n > 0 {
		telemetry.MessagesPolled.WithLabelValues(b.table).Add(float64(n))
	}
	return msgs
}

// Stalled reports whether the most recent poll yielded nothing within its
// budget.
func (b *ReadBuffer) Stalled() bool { return b.stalled }

// Commit persists the highest consumed offset per partition. Called only
// after the corresponding rows were accepted downstream.
func (b *ReadBuffer) Commit() error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.consumer.CommitOffsets(b.pending); err != nil {
		return err
	}
	telemetry.OffsetCommits.WithLabelValues(b.table).Inc()
	clear(b.pending)
	return nil
}

// CommitBatch persists one batch's own offset snapshot. Unlike Commit it
// never reads the pending map, so the driving goroutine may call it while
// the owning goroutine keeps polling.
func (b *ReadBuffer) CommitBatch(offsets map[TopicPartition]int64) error {
	if len(offsets) == 0 {
		return nil
	}
	if err := b.consumer.CommitOffsets(offsets); err != nil {
		return err
	}
	telemetry.OffsetCommits.WithLabelValues(b.table).Inc()
	return nil
}

func (b *ReadBuffer) Close() error { return b.consumer.Close() }
