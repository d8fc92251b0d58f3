package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MaxInsertBlockSize != 1_048_576 {
		t.Fatalf("MaxInsertBlockSize = %d", s.MaxInsertBlockSize)
	}
	if s.MaxBlockSize != 65_536 {
		t.Fatalf("MaxBlockSize = %d", s.MaxBlockSize)
	}
	if s.StreamPollTimeout != 500*time.Millisecond {
		t.Fatalf("StreamPollTimeout = %v", s.StreamPollTimeout)
	}
	if s.StreamFlushInterval != 7_500*time.Millisecond {
		t.Fatalf("StreamFlushInterval = %v", s.StreamFlushInterval)
	}
}

func TestLoadSettings_FileOverridesDefaults(t *testing.T) {
	p := writeFile(t, "settings.yml", `
max_block_size: 128
stream_poll_timeout: 50ms
kafka:
  security.protocol: plaintext
kafka_topics:
  events:
    auto.offset.reset: earliest
`)
	s, err := LoadSettings(p)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MaxBlockSize != 128 {
		t.Fatalf("MaxBlockSize = %d", s.MaxBlockSize)
	}
	if s.StreamPollTimeout != 50*time.Millisecond {
		t.Fatalf("StreamPollTimeout = %v", s.StreamPollTimeout)
	}
	// Unset knobs still receive defaults.
	if s.MaxInsertBlockSize != 1_048_576 {
		t.Fatalf("MaxInsertBlockSize = %d", s.MaxInsertBlockSize)
	}
	if s.Kafka["security.protocol"] != "plaintext" {
		t.Fatalf("Kafka overrides = %v", s.Kafka)
	}
}

func TestLoadSettings_MissingFileIsFine(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yml")); err != nil {
		t.Fatalf("missing settings file should not fail: %v", err)
	}
}

func TestBrokerOverrides_TopicWinsOverGlobal(t *testing.T) {
	s := Settings{
		Kafka: map[string]string{
			"security.protocol": "plaintext",
			"fetch.min.bytes":   "1",
		},
		KafkaTopics: map[string]map[string]string{
			"events": {"fetch.min.bytes": "1024"},
			"logs":   {"compression.type": "lz4"},
		},
	}
	got := s.BrokerOverrides([]string{"events", "logs"})
	if got["security.protocol"] != "plaintext" {
		t.Fatalf("global key lost: %v", got)
	}
	if got["fetch.min.bytes"] != "1024" {
		t.Fatalf("topic override did not win: %v", got)
	}
	if got["compression.type"] != "lz4" {
		t.Fatalf("second topic section missing: %v", got)
	}
}

func TestLoadTables_ParsesEnginesAndViews(t *testing.T) {
	p := writeFile(t, "tables.yml", `
schema_version: v1
tables:
  - name: queue
    columns:
      - {name: a, type: string}
    engine:
      name: Kafka
      broker_list: localhost:9092
      topic_list: events
      group_name: g1
      format: json_each_row
      num_consumers: 2
  - name: mv
    view: {from: queue, to: events}
  - name: events
    sink: memory
`)
	f, err := LoadTables(p)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if len(f.Tables) != 3 {
		t.Fatalf("want 3 tables, got %d", len(f.Tables))
	}
	q := f.Tables[0]
	if q.Database != "default" {
		t.Fatalf("database not defaulted: %q", q.Database)
	}
	if q.Engine == nil || q.Engine.NumConsumers != 2 || q.Engine.TopicList != "events" {
		t.Fatalf("engine spec: %+v", q.Engine)
	}
	if f.Tables[1].View == nil || f.Tables[1].View.From != "queue" {
		t.Fatalf("view spec: %+v", f.Tables[1].View)
	}
}

func TestLoadTables_RejectsUnknownSchemaVersion(t *testing.T) {
	p := writeFile(t, "tables.yml", "schema_version: v9\ntables: []\n")
	if _, err := LoadTables(p); err == nil {
		t.Fatal("schema_version v9 accepted")
	}
}

func TestLoadTables_EngineAndViewAreExclusive(t *testing.T) {
	p := writeFile(t, "tables.yml", `
tables:
  - name: bad
    engine: {name: Kafka, broker_list: b, topic_list: t, group_name: g, format: raw}
    view: {from: x, to: y}
`)
	if _, err := LoadTables(p); err == nil {
		t.Fatal("engine+view table accepted")
	}
}

func TestLoadTables_RequiresName(t *testing.T) {
	p := writeFile(t, "tables.yml", "tables:\n  - database: default\n")
	if _, err := LoadTables(p); err == nil {
		t.Fatal("nameless table accepted")
	}
}
