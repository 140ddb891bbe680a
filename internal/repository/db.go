package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and the pgxmock fakes.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the part of *pgxpool.Pool the store needs.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Open creates a pgx pool from the database settings.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("db.connect.start")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("db.connect.failed", "error", err)
		return nil, common.DatabaseError("parse dsn", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "goods-receipt"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("db.connect.failed", "error", err)
		return nil, common.DatabaseError("connect", err)
	}
	logger.Info("db.connect.ok")
	return pool, nil
}

// HealthCheck pings the database within timeout.
func HealthCheck(ctx context.Context, pool Pool, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("db.ping.failed", "error", err)
		return common.DatabaseError("ping", err)
	}
	logger.Debug("db.ping.ok")
	return nil
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool   Pool
	logger *slog.Logger
}

func NewPostgresStore(pool Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) Repos() Repos { return newPgRepos(s.pool, s.logger) }

func newPgRepos(db DBTX, logger *slog.Logger) Repos {
	return Repos{
		Suppliers:      NewSupplierRepository(db, logger),
		PurchaseOrders: NewPurchaseOrderRepository(db, logger),
		Mappings:       NewMappingRepository(db, logger),
		Documents:      NewDocumentRepository(db, logger),
		Receipts:       NewReceiptRepository(db, logger),
		Results:        NewResultRepository(db, logger),
		Exceptions:     NewExceptionRepository(db, logger),
	}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return common.DatabaseError("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(newPgRepos(tx, s.logger)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("db.tx.rollback_failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return common.DatabaseError("commit", err)
	}
	return nil
}

const dashboardSQL = `
SELECT
  (SELECT count(*) FROM inbound_documents),
  (SELECT count(*) FROM match_results WHERE status = 'matched'),
  (SELECT count(*) FROM match_results WHERE status = 'exceptions'),
  (SELECT count(*) FROM match_results WHERE status = 'error'),
  (SELECT count(*) FROM suppliers)`

func (s *PostgresStore) Dashboard(ctx context.Context) (entity.Dashboard, error) {
	var d entity.Dashboard
	err := s.pool.QueryRow(ctx, dashboardSQL).Scan(&d.Documents, &d.Matched, &d.Exceptions, &d.Errors, &d.Suppliers)
	if err != nil {
		return entity.Dashboard{}, common.DatabaseError("dashboard", err)
	}
	return d, nil
}

func (s *PostgresStore) Close() {
	s.logger.Info("db.close")
	s.pool.Close()
}

// readErr maps pgx.ErrNoRows from a lookup to common.ErrNotFound and tags the
// rest as storage errors. Writes use common.DatabaseError directly.
func readErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewAppError("NOT_FOUND", op, common.ErrNotFound)
	}
	return common.DatabaseError(op, err)
}
