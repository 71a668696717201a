package rowscan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"entitymeta/internal/compiled"
	"entitymeta/internal/metadata"
	"entitymeta/internal/platform"
	"entitymeta/internal/sqlutil"
)

// Sampler reads rows of one entity and maps them with the compiled row mapper.
type Sampler struct {
	exec     QueryExecutor
	reg      *metadata.Registry
	cache    *compiled.Cache
	platform platform.Platform
	logger   *slog.Logger
}

// NewSampler returns a sampler over a sealed registry.
func NewSampler(exec QueryExecutor, reg *metadata.Registry, cache *compiled.Cache, pf platform.Platform, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{exec: exec, reg: reg, cache: cache, platform: pf, logger: logger}
}

// SelectQuery builds the SELECT reading up to limit rows of entity. Members of a
// single-table hierarchy are filtered by their discriminator values.
func (s *Sampler) SelectQuery(entity string, limit int) (string, []any, error) {
	e, err := s.reg.Get(entity)
	if err != nil {
		return "", nil, err
	}
	if e.Table == "" || e.Embeddable || e.Virtual {
		return "", nil, fmt.Errorf("entity %s has no table to sample", e.Name)
	}

	quote := func(name string) string { return sqlutil.QuoteFor(s.platform.Name(), name) }

	columns := selectColumns(e)
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("entity %s has no persisted columns", e.Name)
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}

	builder := sq.Select(quoted...).From(quote(e.Table))
	if e.Root != e.Name && e.DiscriminatorColumn != "" {
		values := s.discriminatorValues(e)
		if len(values) == 0 {
			return "", nil, fmt.Errorf("entity %s has no discriminator value", e.Name)
		}
		if len(values) == 1 {
			builder = builder.Where(sq.Eq{quote(e.DiscriminatorColumn): values[0]})
		} else {
			builder = builder.Where(sq.Eq{quote(e.DiscriminatorColumn): values})
		}
	}
	for _, p := range e.PrimaryKeyProps() {
		for _, col := range p.FieldNames {
			builder = builder.OrderBy(quote(col))
		}
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	var format sq.PlaceholderFormat = sq.Question
	if s.platform.Name() == "postgres" {
		format = sq.Dollar
	}
	query, args, err := builder.PlaceholderFormat(format).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build sample query for %s: %w", e.Name, err)
	}
	return query, args, nil
}

// Sample reads up to limit rows of entity and maps each through the compiled mapper.
func (s *Sampler) Sample(ctx context.Context, entity string, limit int) ([]compiled.Record, error) {
	query, args, err := s.SelectQuery(entity, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", entity, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", entity, err)
	}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	var out []compiled.Record
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", entity, err)
		}
		row := make(compiled.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		rec, err := s.cache.MapRow(entity, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", entity, err)
	}

	s.logger.Debug("sampled rows",
		slog.String("entity", entity),
		slog.Int("rows", len(out)),
	)
	return out, nil
}

// selectColumns lists the persisted columns of e in declaration order without repeats.
func selectColumns(e *metadata.Entity) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range e.Props() {
		if !p.Persist || p.Kind.IsCollection() {
			continue
		}
		for _, col := range p.FieldNames {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}

// discriminatorValues returns the values of e and every member extending it, sorted.
func (s *Sampler) discriminatorValues(e *metadata.Entity) []string {
	root, err := s.reg.Get(e.Root)
	if err != nil {
		return nil
	}
	var out []string
	for value, name := range root.DiscriminatorMap {
		if s.extends(name, e.Name) {
			out = append(out, value)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Sampler) extends(name, ancestor string) bool {
	seen := make(map[string]bool)
	for cur := name; cur != "" && !seen[cur]; {
		if cur == ancestor {
			return true
		}
		seen[cur] = true
		e, ok := s.reg.Lookup(cur)
		if !ok {
			return false
		}
		cur = e.Extends
	}
	return false
}
