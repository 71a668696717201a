package rowscan

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"

	"entitymeta/internal/platform"
)

// OpenConfig selects the driver and instrumentation of a sampling connection.
type OpenConfig struct {
	Platform platform.Platform
	DSN      string
	// ConnectTimeout bounds the initial ping. Zero skips the ping.
	ConnectTimeout time.Duration
	Tracing        bool
	Metrics        bool
}

// Open connects with the platform's driver. With tracing or metrics enabled the handle is
// instrumented by otelsql. The returned cleanup closes the handle and unregisters metrics.
func Open(ctx context.Context, cfg OpenConfig, logger *slog.Logger) (*sql.DB, func() error, error) {
	if cfg.Platform == nil {
		return nil, nil, fmt.Errorf("platform is required to open a database")
	}
	driver := cfg.Platform.DriverName()
	if driver == "" {
		return nil, nil, fmt.Errorf("platform %s has no database driver", cfg.Platform.Name())
	}
	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("a DSN is required to open a %s database", cfg.Platform.Name())
	}

	var (
		db         *sql.DB
		dbStatsReg interface{ Unregister() error }
		err        error
	)
	if cfg.Tracing || cfg.Metrics {
		system := dbSystem(cfg.Platform.Name())
		opts := []otelsql.Option{otelsql.WithAttributes(system)}
		if cfg.Tracing {
			opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		}
		db, err = otelsql.Open(driver, cfg.DSN, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s database: %w", driver, err)
		}
		if cfg.Metrics {
			dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(system))
			if err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}
		logger.Info("database instrumentation enabled",
			slog.String("driver", driver),
			slog.Bool("metrics", cfg.Metrics),
			slog.Bool("tracing", cfg.Tracing),
		)
	} else {
		db, err = sql.Open(driver, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s database: %w", driver, err)
		}
	}

	cleanup := func() error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	}

	if cfg.ConnectTimeout > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
		}
	}
	return db, cleanup, nil
}

func dbSystem(platformName string) attribute.KeyValue {
	switch platformName {
	case "postgres":
		return semconv.DBSystemPostgreSQL
	case "sqlite":
		return semconv.DBSystemSqlite
	default:
		return semconv.DBSystemMySQL
	}
}
