// Package format turns raw message payloads into rows. One payload may carry
// several rows separated by the engine's row delimiter.
package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
)

type Options struct {
	// Delimiter separates rows inside one payload; 0 means newline.
	Delimiter byte
	// Columns gives positional formats (csv) their field names.
	Columns []string
	// Schema names an external format schema; unused by the built-ins.
	Schema string
}

// Parser decodes one payload into zero or more field maps. A decode failure
// counts against the engine's skip-broken-messages budget.
type Parser interface {
	Parse(payload []byte) ([]map[string]any, error)
}

/*──────── registry ───────*/

type factory = func(Options) Parser

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func New(name string, opts Options) (Parser, error) {
	if f, ok := reg[name]; ok {
		return f(opts), nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}

func init() {
	Register("json_each_row", func(o Options) Parser { return &jsonEachRow{opts: o} })
	Register("raw", func(o Options) Parser { return &raw{opts: o} })
	Register("csv", func(o Options) Parser { return &csvRows{opts: o} })
}

func splitRows(payload []byte, delim byte) [][]byte {
	if delim == 0 {
		delim = '\n'
	}
	parts := bytes.Split(payload, []byte{delim})
	out := parts[:0]
	for _, p := range parts {
		if len(bytes.TrimSpace(p)) > 0 {
			out = append(out, p)
		}
	}
	return out
}

/*──────── json_each_row ───────*/

type jsonEachRow struct{ opts Options }

func (p *jsonEachRow) Parse(payload []byte) ([]map[string]any, error) {
	chunks := splitRows(payload, p.opts.Delimiter)
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		var m map[string]any
		if err := json.Unmarshal(c, &m); err != nil {
			return nil, fmt.Errorf("json_each_row: %w", err)
		}
		rows = append(rows, m)
	}
	return rows, nil
}

/*──────── raw ───────*/

// raw keeps each delimited chunk as a single text field.
type raw struct{ opts Options }

func (p *raw) Parse(payload []byte) ([]map[string]any, error) {
	chunks := splitRows(payload, p.opts.Delimiter)
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{"raw": string(c)})
	}
	return rows, nil
}

/*──────── csv ───────*/

type csvRows struct{ opts Options }

func (p *csvRows) Parse(payload []byte) ([]map[string]any, error) {
	if len(p.opts.Columns) == 0 {
		return nil, fmt.Errorf("csv: no columns declared")
	}
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = len(p.opts.Columns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		m := make(map[string]any, len(rec))
		for i, v := range rec {
			m[p.opts.Columns[i]] = v
		}
		rows = append(rows, m)
	}
	return rows, nil
}
