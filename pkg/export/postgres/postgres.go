// Package postgres implements an Exporter backed by PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakost/zenmoney-api/pkg/models"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL exporter configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Exporter upserts transactions into the zenmoney_transactions table.
type Exporter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a new PostgreSQL exporter, connecting and running the
// migration up front.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	e := &Exporter{pool: pool, logger: logger}
	if err := e.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return e, nil
}

func (e *Exporter) runMigrations(ctx context.Context) error {
	if _, err := e.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	e.logger.Debug("migrations completed")
	return nil
}

// Export upserts the batch inside a single database transaction.
func (e *Exporter) Export(ctx context.Context, transactions []models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range transactions {
		batch.Queue(`
			INSERT INTO zenmoney_transactions (
				id, changed, created, user_id, deleted, date,
				income, income_account, income_instrument,
				outcome, outcome_account, outcome_instrument,
				payee, original_payee, merchant, comment, mcc, tags
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9,
				$10, $11, $12,
				$13, $14, $15, $16, $17, $18
			)
			ON CONFLICT (id) DO UPDATE SET
				changed = EXCLUDED.changed,
				deleted = EXCLUDED.deleted,
				date = EXCLUDED.date,
				income = EXCLUDED.income,
				income_account = EXCLUDED.income_account,
				income_instrument = EXCLUDED.income_instrument,
				outcome = EXCLUDED.outcome,
				outcome_account = EXCLUDED.outcome_account,
				outcome_instrument = EXCLUDED.outcome_instrument,
				payee = EXCLUDED.payee,
				original_payee = EXCLUDED.original_payee,
				merchant = EXCLUDED.merchant,
				comment = EXCLUDED.comment,
				mcc = EXCLUDED.mcc,
				tags = EXCLUDED.tags,
				synced_at = NOW()`,
			t.ID, t.Changed, t.Created, t.User, t.Deleted, t.Date,
			t.Income, t.IncomeAccount, t.IncomeInstrument,
			t.Outcome, t.OutcomeAccount, t.OutcomeInstrument,
			t.Payee, t.OriginalPayee, t.Merchant, t.Comment, t.MCC, t.Tag,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range transactions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upserting transaction: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	e.logger.Debug("wrote transactions to postgres", "count", len(transactions))
	return nil
}

// Close releases the connection pool.
func (e *Exporter) Close() error {
	e.pool.Close()
	return nil
}
