package engine

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"siphon/internal/config"
)

const maxConsumers = 16

const (
	// Delay before the scheduler picks the engine up again after a cycle
	// loop exits.
	rescheduleDelay = 500 * time.Millisecond
	// Bounded wait for broker client teardown at shutdown.
	cleanupTimeout = 3 * time.Second
	// One scheduling slot may not monopolize the shared pool longer than
	// this before yielding with a reschedule.
	maxWorkDuration = time.Minute
)

var (
	ErrTooManyConsumers = errors.New("number of consumers can not be bigger than 16")
	ErrTooFewConsumers  = errors.New("number of consumers can not be lower than 1")
	ErrMultiTopicWrite  = errors.New("can't write to a Kafka table with multiple topics")
)

// Settings are one engine's fully-resolved creation parameters. Zero-valued
// knobs from the table definition are filled from the global settings here,
// so the rest of the package never consults defaults.
type Settings struct {
	Brokers            []string
	Topics             []string
	Group              string
	ClientID           string
	Format             string
	RowDelimiter       byte // 0 = newline
	Schema             string
	NumConsumers       int
	MaxBlockSize       uint64 // row budget of one streaming cycle, per consumer
	PollMaxBatchSize   uint64 // effective = min(cap, MaxBlockSize)
	PollTimeout        time.Duration
	FlushInterval      time.Duration
	SkipBrokenMessages uint64
	CommitEveryBatch   bool

	Overrides map[string]string // librdkafka-style client overrides
}

func newSettings(spec config.EngineSpec, global config.Settings, table string) (Settings, error) {
	var s Settings

	s.Brokers = splitList(spec.BrokerList)
	if len(s.Brokers) == 0 {
		return s, fmt.Errorf("broker_list is required")
	}
	s.Topics = splitList(spec.TopicList)
	if len(s.Topics) == 0 {
		return s, fmt.Errorf("topic_list is required")
	}
	if spec.GroupName == "" {
		return s, fmt.Errorf("group_name is required")
	}
	s.Group = spec.GroupName
	if spec.Format == "" {
		return s, fmt.Errorf("format is required")
	}
	s.Format = spec.Format
	s.Schema = spec.Schema

	switch n := spec.NumConsumers; {
	case n == 0:
		s.NumConsumers = 1
	case n < 1:
		return s, ErrTooFewConsumers
	case n > maxConsumers:
		return s, ErrTooManyConsumers
	default:
		s.NumConsumers = n
	}

	if len(spec.RowDelimiter) > 1 {
		return s, fmt.Errorf("row_delimiter must be a single character, got %q", spec.RowDelimiter)
	}
	if spec.RowDelimiter != "" {
		s.RowDelimiter = spec.RowDelimiter[0]
	}

	s.ClientID = spec.ClientID
	if s.ClientID == "" {
		s.ClientID = defaultClientID(table)
	}

	s.MaxBlockSize = spec.MaxBlockSize
	if s.MaxBlockSize == 0 {
		s.MaxBlockSize = global.MaxInsertBlockSize / uint64(s.NumConsumers)
	}
	if s.MaxBlockSize < 1 {
		s.MaxBlockSize = 1
	}

	cap := spec.PollMaxBatchSize
	if cap == 0 {
		cap = global.MaxBlockSize
	}
	s.PollMaxBatchSize = min(cap, s.MaxBlockSize)

	s.PollTimeout = global.StreamPollTimeout
	s.FlushInterval = global.StreamFlushInterval
	s.SkipBrokenMessages = spec.SkipBrokenMessages
	s.CommitEveryBatch = spec.CommitEveryBatch
	s.Overrides = global.BrokerOverrides(s.Topics)

	return s, nil
}

// consumerClientID appends the consumer ordinal so concurrent consumers of
// one table stay distinguishable on the broker side.
func (s Settings) consumerClientID(n int) string {
	if s.NumConsumers > 1 {
		return fmt.Sprintf("%s-%d", s.ClientID, n)
	}
	return s.ClientID
}

func defaultClientID(table string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("siphon-%s-%s", host, table)
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
