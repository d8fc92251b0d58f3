package engine

import (
	"sync"
)

// Producer is the publish side of the broker client.
type Producer interface {
	SendBatch(topic string, rows [][]byte) error
	Close() error
}

// WriteBuffer batches serialized rows bound for a single topic. Hitting the
// flush threshold sends inline, so a slow broker blocks the writer up to the
// producer's configured timeout.
type WriteBuffer struct {
	producer  Producer
	topic     string
	delimiter byte
	flushRows int

	mu   sync.Mutex
	rows [][]byte
}

func newWriteBuffer(p Producer, topic string, delimiter byte, flushRows int) *WriteBuffer {
	if flushRows < 1 {
		flushRows = 1
	}
	return &WriteBuffer{producer: p, topic: topic, delimiter: delimiter, flushRows: flushRows}
}

// WriteRow buffers one row. A trailing row delimiter, when configured, is
// stripped; each row travels as its own message.
func (w *WriteBuffer) WriteRow(row []byte) error {
	if n := len(row); w.delimiter != 0 && n > 0 && row[n-1] == w.delimiter {
		row = row[:n-1]
	}
	cp := make([]byte, len(row))
	copy(cp, row)

	w.mu.Lock()
	w.rows = append(w.rows, cp)
	var batch [][]byte
	if len(w.rows) >= w.flushRows {
		batch = w.rows
		w.rows = nil
	}
	w.mu.Unlock()

	if batch != nil {
		return w.producer.SendBatch(w.topic, batch)
	}
	return nil
}

// Flush publishes whatever is buffered.
func (w *WriteBuffer) Flush() error {
	w.mu.Lock()
	batch := w.rows
	w.rows = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return w.producer.SendBatch(w.topic, batch)
}

func (w *WriteBuffer) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.producer.Close()
		return err
	}
	return w.producer.Close()
}
