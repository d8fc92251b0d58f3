package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Settings are the process-wide defaults every engine falls back to when its
// own definition leaves a knob unset.
type Settings struct {
	MaxInsertBlockSize  uint64        `koanf:"max_insert_block_size"`
	MaxBlockSize        uint64        `koanf:"max_block_size"`
	StreamPollTimeout   time.Duration `koanf:"stream_poll_timeout"`
	StreamFlushInterval time.Duration `koanf:"stream_flush_interval"`

	// Raw librdkafka-style overrides handed to the broker client: kafka.*
	// applies to every topic, kafka_topics.<topic>.* on top of that.
	Kafka       map[string]string            `koanf:"kafka"`
	KafkaTopics map[string]map[string]string `koanf:"kafka_topics"`
}

// LoadSettings merges YAML (if present) with env-vars
// (prefix `SIPHON__`, delimiter `__`).
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Settings{}, err
		}
	}
	_ = k.Load(env.Provider("SIPHON__", "__", nil), nil)

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return s, err
	}
	applyDefaults(&s)
	return s, nil
}

// BrokerOverrides flattens the global and per-topic override maps for one
// topic set. Later topics win on key collisions, matching the order the
// original configuration applies sections in.
func (s Settings) BrokerOverrides(topics []string) map[string]string {
	out := make(map[string]string, len(s.Kafka))
	for k, v := range s.Kafka {
		out[k] = v
	}
	for _, topic := range topics {
		for k, v := range s.KafkaTopics[topic] {
			out[k] = v
		}
	}
	return out
}

func applyDefaults(s *Settings) {
	if s.MaxInsertBlockSize == 0 {
		s.MaxInsertBlockSize = 1_048_576
	}
	if s.MaxBlockSize == 0 {
		s.MaxBlockSize = 65_536
	}
	if s.StreamPollTimeout == 0 {
		s.StreamPollTimeout = 500 * time.Millisecond
	}
	if s.StreamFlushInterval == 0 {
		s.StreamFlushInterval = 7_500 * time.Millisecond
	}
}
