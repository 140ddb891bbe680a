package repository

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return common.DatabaseError("migrate dialect", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		logger.Error("db.migrate.failed", "error", err)
		return common.DatabaseError("migrate", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return common.DatabaseError("migrate version", err)
	}
	logger.Info("db.migrate.ok", "version", v)
	return nil
}

// SchemaVersion reports the applied migration version.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, common.DatabaseError("migrate dialect", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, common.DatabaseError("schema version", err)
	}
	return v, nil
}
