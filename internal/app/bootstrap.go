package app

import (
	"fmt"

	"siphon/internal/catalog"
	"siphon/internal/config"
	"siphon/internal/engine"
	"siphon/internal/logging"
	"siphon/internal/scheduler"
	"siphon/internal/sink"
	"siphon/internal/telemetry"
	"siphon/internal/transport"
)

type Config struct {
	ControlPort  int
	MetricsPort  int
	SettingsPath string // global settings YAML, optional
	TablesPath   string // table definitions YAML
	Workers      int    // shared scheduler pool size
}

// Bootstrap wires the process: settings, catalog, sinks, engines.
// Engines are created but not started; Run starts them.
func Bootstrap(cfg Config) (*App, error) {
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}

	cat := catalog.NewMemory()
	for _, t := range tables.Tables {
		id := catalog.TableID{Database: t.Database, Name: t.Name}
		if t.View != nil {
			from := catalog.TableID{Database: t.Database, Name: t.View.From}
			var target *catalog.TableID
			if t.View.To != "" {
				target = &catalog.TableID{Database: t.Database, Name: t.View.To}
			}
			cat.AddView(id, from, target)
			continue
		}
		cat.AddTable(id)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 4
	}
	pool := scheduler.NewPool(workers)

	a := &App{cat: cat, pool: pool, cfg: cfg}
	for _, t := range tables.Tables {
		if t.Engine == nil {
			continue
		}
		sinkName := t.Sink
		if sinkName == "" {
			sinkName = "memory"
		}
		dest, err := sink.New(sinkName)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		eng, err := engine.New(t.Engine.Name, engine.Params{
			ID:        catalog.TableID{Database: t.Database, Name: t.Name},
			Spec:      *t.Engine,
			Global:    settings,
			Columns:   cols,
			Snapshot:  cat,
			Sink:      dest,
			Scheduler: pool,
		})
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		a.engines = append(a.engines, eng)
	}

	srv, err := transport.StartServer(cfg.ControlPort)
	if err != nil {
		a.closePartial()
		return nil, fmt.Errorf("transport: %w", err)
	}
	a.transport = srv

	telemetry.Expose(cfg.MetricsPort)
	logging.L().Info("bootstrap complete", "engines", len(a.engines))
	return a, nil
}
