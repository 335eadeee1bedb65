package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 10
	defaultMinConns        = 2
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// PostgresDB wraps the pgx connection pool.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a PostgreSQL connection pool.
func NewPostgresDB(ctx context.Context, connString string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = int32(getEnvInt("PG_MAX_CONNS", defaultMaxConns))
	config.MinConns = int32(getEnvInt("PG_MIN_CONNS", defaultMinConns))
	lifetimeMin := getEnvInt("PG_MAX_CONN_LIFETIME_MIN", int(defaultMaxConnLifetime/time.Minute))
	idleMin := getEnvInt("PG_MAX_CONN_IDLE_MIN", int(defaultMaxConnIdleTime/time.Minute))
	config.MaxConnLifetime = time.Duration(lifetimeMin) * time.Minute
	config.MaxConnIdleTime = time.Duration(idleMin) * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *PostgresDB) Close() {
	db.pool.Close()
}

// Pool exposes the underlying pool for health checks.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505). The unique constraints on participants and
// results are the actual submission guard; callers translate this into
// AlreadyJoined / AlreadySubmitted.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsRetryable classifies a storage error as transient. Connection-level
// failures, serialization failures and deadlocks qualify; constraint and
// syntax errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"57P03", // cannot_connect_now
			"53300", // too_many_connections
			"08000", "08003", "08006": // connection exceptions
			return true
		}
		return false
	}
	// Errors without a SQLSTATE are typically network-level.
	return true
}
