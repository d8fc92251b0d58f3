package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const SupportedSchema = "v1"

// File is a parsed table-definition document: the plain tables, the Kafka
// engine tables feeding them, and the views wiring one to the other.
type File struct {
	SchemaVersion string      `yaml:"schema_version"`
	Tables        []TableSpec `yaml:"tables"`
}

type TableSpec struct {
	Database string       `yaml:"database"`
	Name     string       `yaml:"name"`
	Columns  []ColumnSpec `yaml:"columns"`
	Engine   *EngineSpec  `yaml:"engine"`
	View     *ViewSpec    `yaml:"view"`
	Sink     string       `yaml:"sink"` // sink driver name, default "memory"
}

type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// EngineSpec mirrors the creation arguments of the Kafka storage engine.
type EngineSpec struct {
	Name               string `yaml:"name"` // e.g. "Kafka"
	BrokerList         string `yaml:"broker_list"`
	TopicList          string `yaml:"topic_list"`
	GroupName          string `yaml:"group_name"`
	ClientID           string `yaml:"client_id"`
	Format             string `yaml:"format"`
	RowDelimiter       string `yaml:"row_delimiter"`
	Schema             string `yaml:"schema"`
	NumConsumers       int    `yaml:"num_consumers"`
	MaxBlockSize       uint64 `yaml:"max_block_size"`
	PollMaxBatchSize   uint64 `yaml:"poll_max_batch_size"`
	SkipBrokenMessages uint64 `yaml:"skip_broken_messages"`
	CommitEveryBatch   bool   `yaml:"commit_every_batch"`
}

// ViewSpec declares a continuously-fed view: it consumes from `from` and
// materializes into `to`.
type ViewSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LoadTables parses a table-definition YAML and validates schema_version.
func LoadTables(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, err
	}
	if f.SchemaVersion == "" {
		f.SchemaVersion = SupportedSchema
	}
	if f.SchemaVersion != SupportedSchema {
		return f, fmt.Errorf("tables schema_version %q not supported (want %q)", f.SchemaVersion, SupportedSchema)
	}
	for i := range f.Tables {
		t := &f.Tables[i]
		if t.Name == "" {
			return f, fmt.Errorf("tables[%d]: missing name", i)
		}
		if t.Database == "" {
			t.Database = "default"
		}
		if t.Engine != nil && t.View != nil {
			return f, fmt.Errorf("table %s: engine and view are mutually exclusive", t.Name)
		}
	}
	return f, nil
}
