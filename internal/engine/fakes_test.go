package engine

import (
	"context"
	"sync"
	"time"

	"siphon/internal/sink"
)

// fakeConsumer serves queued messages immediately and reports an empty queue
// as a poll timeout.
type fakeConsumer struct {
	mu        sync.Mutex
	queue     []Message
	committed map[TopicPartition]int64
	commitErr error
	closed    bool
}

func (f *fakeConsumer) enqueue(msgs ...Message) {
	f.mu.Lock()
	f.queue = append(f.queue, msgs...)
	f.mu.Unlock()
}

func (f *fakeConsumer) Poll(_ context.Context, _ time.Duration) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return Message{}, false
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, true
}

func (f *fakeConsumer) CommitOffsets(offsets map[TopicPartition]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.committed == nil {
		f.committed = make(map[TopicPartition]int64)
	}
	for tp, off := range offsets {
		f.committed[tp] = off
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) committedOffset(topic string, partition int32) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	off, ok := f.committed[TopicPartition{topic, partition}]
	return off, ok
}

// fakeProducer records batches.
type fakeProducer struct {
	mu      sync.Mutex
	batches [][][]byte
	sendErr error
	closed  bool
}

func (f *fakeProducer) SendBatch(_ string, rows [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([][]byte, len(rows))
	copy(cp, rows)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeProducer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// flakySink fails a configured number of row writes, then delegates to the
// in-memory store.
type flakySink struct {
	inner    *sink.Memory
	mu       sync.Mutex
	failures int
	opens    int
}

func (s *flakySink) Open(table string) (sink.Writer, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	w, err := s.inner.Open(table)
	if err != nil {
		return nil, err
	}
	return &flakyWriter{sink: s, inner: w}, nil
}

func (s *flakySink) Close() error { return s.inner.Close() }

func (s *flakySink) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type flakyWriter struct {
	sink  *flakySink
	inner sink.Writer
}

func (w *flakyWriter) WriteRow(r sink.Row) error {
	w.sink.mu.Lock()
	if w.sink.failures > 0 {
		w.sink.failures--
		w.sink.mu.Unlock()
		return errTestSink
	}
	w.sink.mu.Unlock()
	return w.inner.WriteRow(r)
}

func (w *flakyWriter) Close() error { return w.inner.Close() }

// quotaSink accepts a fixed number of rows, then rejects everything after.
type quotaSink struct {
	inner  *sink.Memory
	mu     sync.Mutex
	accept int
}

func (s *quotaSink) Open(table string) (sink.Writer, error) {
	w, err := s.inner.Open(table)
	if err != nil {
		return nil, err
	}
	return &quotaWriter{sink: s, inner: w}, nil
}

func (s *quotaSink) Close() error { return s.inner.Close() }

type quotaWriter struct {
	sink  *quotaSink
	inner sink.Writer
}

func (w *quotaWriter) WriteRow(r sink.Row) error {
	w.sink.mu.Lock()
	if w.sink.accept <= 0 {
		w.sink.mu.Unlock()
		return errTestSink
	}
	w.sink.accept--
	w.sink.mu.Unlock()
	return w.inner.WriteRow(r)
}

func (w *quotaWriter) Close() error { return w.inner.Close() }

// endlessConsumer never runs dry: every poll synthesizes the next message on
// one partition.
type endlessConsumer struct {
	mu        sync.Mutex
	next      int64
	committed map[TopicPartition]int64
}

func (f *endlessConsumer) Poll(_ context.Context, _ time.Duration) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := Message{
		Topic:     "t1",
		Offset:    f.next,
		Value:     []byte(`{"v":1}`),
		Timestamp: time.Unix(1700000000, 0),
	}
	f.next++
	return m, true
}

func (f *endlessConsumer) CommitOffsets(offsets map[TopicPartition]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committed == nil {
		f.committed = make(map[TopicPartition]int64)
	}
	for tp, off := range offsets {
		f.committed[tp] = off
	}
	return nil
}

func (f *endlessConsumer) Close() error { return nil }

var errTestSink = &testSinkError{}

type testSinkError struct{}

func (*testSinkError) Error() string { return "sink rejected the batch" }
