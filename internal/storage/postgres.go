package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const schema = `
	CREATE TABLE IF NOT EXISTS vault_submissions (
		id            UUID PRIMARY KEY,
		gauge_address TEXT NOT NULL,
		caller        TEXT NOT NULL,
		tx_hash       TEXT,
		state         TEXT NOT NULL,
		reason        TEXT,
		gas_used      BIGINT NOT NULL DEFAULT 0,
		submitted_at  TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ NOT NULL
	)
`

// NewPostgresStorage creates a new PostgreSQL storage and ensures the ledger table exists.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	storage := &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}

	err = storage.migrate(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return storage, nil
}

func (p *PostgresStorage) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create vault_submissions: %w", err)
	}
	return nil
}

// StoreSubmission stores a submission record in PostgreSQL.
func (p *PostgresStorage) StoreSubmission(ctx context.Context, record *types.SubmissionRecord) error {
	query := `
		INSERT INTO vault_submissions (
			id, gauge_address, caller, tx_hash, state, reason,
			gas_used, submitted_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	var txHash sql.NullString
	if record.TxHash != (types.SubmissionRecord{}).TxHash {
		txHash = sql.NullString{String: record.TxHash.Hex(), Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		record.ID,
		record.GaugeAddress.Hex(),
		record.Caller.Hex(),
		txHash,
		string(record.State),
		record.Reason,
		int64(record.GasUsed),
		record.SubmittedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	p.logger.Debug("submission-stored",
		zap.String("submission-id", record.ID),
		zap.String("gauge", record.GaugeAddress.Hex()),
		zap.String("state", string(record.State)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
