package sightings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection and runs migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations/postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// DB returns the underlying database connection for migration commands.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) SaveSighting(ctx context.Context, sg *Sighting) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sightings (timestamp, latitude, longitude, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		sg.Timestamp.UTC(), sg.Latitude, sg.Longitude, sg.Note).Scan(&sg.ID)
	if err != nil {
		return fmt.Errorf("saving sighting: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentSightings(ctx context.Context, limit int) ([]Sighting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, latitude, longitude, note
		FROM sightings
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanSightings(rows)
}

func (s *PostgresStore) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sightings WHERE timestamp > $1`, cutoff.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting sightings: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sightings WHERE timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning sightings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned sightings: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
