package inspectapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"entitymeta/internal/bootstrap"
	"entitymeta/internal/compiled"
	"entitymeta/internal/dump"
	"entitymeta/internal/pkey"
)

// sampleReport is the JSON document written for a row sample.
type sampleReport struct {
	Entity  string          `json:"entity"`
	Records []sampledRecord `json:"records"`
}

// sampledRecord pairs a mapped row with its encoded identity. ID is empty when the row
// has no complete primary key.
type sampledRecord struct {
	ID     string          `json:"id,omitempty"`
	Values compiled.Record `json:"values"`
}

// Report writes the registry dump and, when a sample entity is configured, the mapped
// sample rows. Both go to stdout unless output.path names a file for the dump.
func (a *App) Report(ctx context.Context) error {
	a.stateMu.Lock()
	snapshot := a.snapshot
	sampler := a.sampler
	a.stateMu.Unlock()

	if snapshot == nil {
		return fmt.Errorf("app is not initialized")
	}

	if err := a.writeDump(snapshot); err != nil {
		return err
	}
	if sampler == nil {
		return nil
	}

	entity := a.cfg.Sample.Entity
	records, err := sampler.Sample(ctx, entity, a.cfg.Sample.Limit)
	if err != nil {
		return fmt.Errorf("failed to sample %s: %w", entity, err)
	}
	sampled := make([]sampledRecord, 0, len(records))
	for _, rec := range records {
		key, ok, err := snapshot.Cache.PrimaryKey(entity, rec)
		if err != nil {
			return fmt.Errorf("failed to extract key of %s: %w", entity, err)
		}
		row := sampledRecord{Values: rec}
		if ok {
			row.ID = pkey.Encode(entity, key)
		}
		sampled = append(sampled, row)
	}
	a.logger.Info("rows sampled",
		slog.String("entity", entity),
		slog.Int("rows", len(records)),
	)

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sampleReport{Entity: entity, Records: sampled}); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}
	return nil
}

func (a *App) writeDump(snapshot *bootstrap.Snapshot) error {
	path := strings.TrimSpace(a.cfg.Output.Path)
	if path == "" || path == "-" {
		return dump.Write(a.stdout, snapshot.Registry, a.cfg.Output.Format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := dump.Write(f, snapshot.Registry, a.cfg.Output.Format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	a.logger.Info("registry dump written",
		slog.String("path", path),
		slog.String("format", a.cfg.Output.Format),
	)
	return nil
}
