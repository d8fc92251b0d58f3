// Package engine implements the Kafka storage engine: a pool of pull
// consumers feeding a tabular sink under a shared background scheduler, with
// offsets committed only after downstream acceptance.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"siphon/internal/catalog"
	"siphon/internal/config"
	"siphon/internal/format"
	"siphon/internal/logging"
	"siphon/internal/scheduler"
	"siphon/internal/sink"
)

// Params carries everything a constructor needs to build an engine for one
// table.
type Params struct {
	ID        catalog.TableID
	Spec      config.EngineSpec
	Global    config.Settings
	Columns   []string
	Snapshot  catalog.Snapshot
	Sink      sink.Sink
	Scheduler *scheduler.Pool
}

// Constructor builds an engine from creation parameters.
type Constructor func(Params) (*Engine, error)

var registry = map[string]Constructor{}

// Register maps an engine name to its constructor. Called at process start.
func Register(name string, c Constructor) { registry[name] = c }

// New dispatches to a registered constructor by engine name.
func New(name string, p Params) (*Engine, error) {
	if c, ok := registry[name]; ok {
		return c(p)
	}
	return nil, fmt.Errorf("unknown storage engine %q", name)
}

func init() { Register("Kafka", NewKafka) }

// Engine is one Kafka-backed table. Startup creates the consumer pool and
// activates the streaming task; Shutdown winds both down.
type Engine struct {
	id       catalog.TableID
	settings Settings
	parser   format.Parser
	gate     *catalog.Gate
	sink     sink.Sink
	pool     *bufferPool
	task     *scheduler.Task
	log      *slog.Logger
	maxWork  time.Duration

	cancelled atomic.Bool
	// numCreated is written by Startup before the task activates and read
	// afterwards; no further synchronization is needed.
	numCreated int

	teardown sync.Once

	// injection points for tests
	newConsumer func(n int) (Consumer, error)
	newProducer func() (Producer, error)
}

// NewKafka validates the creation parameters and builds the engine. It fails
// fast on configuration errors; no broker client is created here.
func NewKafka(p Params) (*Engine, error) {
	s, err := newSettings(p.Spec, p.Global, p.ID.Name)
	if err != nil {
		return nil, err
	}
	parser, err := format.New(s.Format, format.Options{
		Delimiter: s.RowDelimiter,
		Columns:   p.Columns,
		Schema:    s.Schema,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		id:       p.ID,
		settings: s,
		parser:   parser,
		gate:     catalog.NewGate(p.Snapshot),
		sink:     p.Sink,
		pool:     newBufferPool(s.NumConsumers),
		log:      logging.ForTable(p.ID.String()),
		maxWork:  maxWorkDuration,
	}
	e.newConsumer = func(n int) (Consumer, error) {
		return newSaramaConsumer(brokerConfig{
			brokers:   s.Brokers,
			group:     s.Group,
			clientID:  s.consumerClientID(n),
			topics:    s.Topics,
			queueCap:  int(s.MaxBlockSize),
			overrides: s.Overrides,
		}, e.log)
	}
	e.newProducer = func() (Producer, error) {
		return newSaramaProducer(brokerConfig{
			brokers:   s.Brokers,
			clientID:  s.ClientID,
			timeout:   s.PollTimeout,
			overrides: s.Overrides,
		})
	}
	e.task = p.Scheduler.NewTask("StorageKafka ("+p.ID.Name+")", e.threadFunc)
	return e, nil
}

func (e *Engine) ID() catalog.TableID { return e.id }

func (e *Engine) Settings() Settings { return e.settings }

// CreatedConsumers reports the pool size; it can be lower than requested
// when some consumers failed to come up.
func (e *Engine) CreatedConsumers() int { return e.numCreated }

// Startup creates the consumer pool best-effort and activates streaming.
// A consumer that fails to come up is logged and skipped; it only reduces
// parallelism, never aborts startup.
func (e *Engine) Startup() {
	for i := 0; i < e.settings.NumConsumers; i++ {
		c, err := e.newConsumer(i)
		if err != nil {
			e.log.Warn("cannot create consumer", "ordinal", i, "err", err)
			continue
		}
		e.pool.checkin(newReadBuffer(c, e.id.String(), int(e.settings.PollMaxBatchSize), e.settings.PollTimeout))
		e.numCreated++
	}
	e.task.ActivateAndSchedule()
}

// Shutdown stops streaming, drains the pool and tears the clients down.
// Safe to call more than once.
func (e *Engine) Shutdown() {
	e.cancelled.Store(true)
	e.task.Deactivate()

	e.teardown.Do(func() {
		for i := 0; i < e.numCreated; i++ {
			b := e.pool.checkout(cleanupTimeout)
			if b == nil {
				e.log.Error("buffer not returned before teardown timeout; leaking client", "outstanding", e.numCreated-i)
				break
			}
			if err := b.Close(); err != nil {
				e.log.Warn("consumer close failed", "err", err)
			}
		}
	})
}

// Write opens the publish path. Construction fails before any producer is
// built when the table is bound to more than one topic.
func (e *Engine) Write() (*WriteBuffer, error) {
	if len(e.settings.Topics) > 1 {
		return nil, ErrMultiTopicWrite
	}
	p, err := e.newProducer()
	if err != nil {
		return nil, err
	}
	return newWriteBuffer(p, e.settings.Topics[0], e.settings.RowDelimiter, flushRowsPerMessage), nil
}

const flushRowsPerMessage = 1024

// threadFunc is the scheduler callback: stream in a tight loop while the
// downstream stays ready, then yield the slot and reschedule.
func (e *Engine) threadFunc() {
	e.runStreaming()
	if !e.cancelled.Load() {
		e.task.ScheduleAfter(rescheduleDelay)
	}
}

func (e *Engine) runStreaming() {
	// A recoverable failure must never kill the task permanently; anything
	// escaping a cycle converts to "break and reschedule".
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("streaming cycle panicked", "panic", r)
		}
	}()

	deps := e.gate.DependentCount(e.id)
	if deps == 0 {
		// Nothing to feed.
		return
	}

	start := time.Now()
	for !e.cancelled.Load() && e.numCreated > 0 {
		if !e.gate.Ready(e.id) {
			break
		}
		e.log.Debug("started streaming to attached views", "views", deps)

		stalled, err := e.streamCycle()
		if err != nil {
			e.log.Error("streaming cycle failed", "err", err)
			break
		}
		if stalled {
			e.log.Debug("stream stalled, rescheduling")
			break
		}
		if time.Since(start) > e.maxWork {
			e.log.Debug("work duration ceiling reached, rescheduling")
			break
		}
	}
}
