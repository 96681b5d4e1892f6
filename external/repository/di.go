package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/gymvoice/internal/config"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.History, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.HistoryDriver == config.HistoryDriverPostgres {
			return openPostgres(cfg.DatabaseURL)
		}
		r, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("history store opened", "driver", config.HistoryDriverSQLite, "path", cfg.SQLitePath)
		return r, nil
	})
}

func openPostgres(databaseURL string) (repository.History, error) {
	ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
	defer cancel()

	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	slog.Info("history store opened", "driver", config.HistoryDriverPostgres)
	return NewPostgresRepository(p), nil
}
