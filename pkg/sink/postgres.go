package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/transitgeo/transitgeo/pkg/transit"
)

type PostgresSink struct {
	db *sql.DB

	mutex   sync.Mutex
	created map[string]bool
}

func OpenPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresSink{db: db, created: map[string]bool{}}, nil
}

func (p *PostgresSink) Name() string {
	return "postgres"
}

func createTableStatement(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (route TEXT NOT NULL, linestring TEXT NOT NULL, info TEXT)",
		pgx.Identifier{table}.Sanitize(),
	)
}

func insertStatement(table string) string {
	return fmt.Sprintf("INSERT INTO %s (route, linestring, info) VALUES ($1, $2, $3)", pgx.Identifier{table}.Sanitize())
}

func deleteStatement(table string) string {
	return fmt.Sprintf("DELETE FROM %s", pgx.Identifier{table}.Sanitize())
}

func (p *PostgresSink) ensureTable(ctx context.Context, table string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.created[table] {
		return nil
	}

	if _, err := p.db.ExecContext(ctx, createTableStatement(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	p.created[table] = true
	return nil
}

func (p *PostgresSink) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	return p.write(ctx, table, records, false)
}

func (p *PostgresSink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	return p.write(ctx, table, records, true)
}

func (p *PostgresSink) write(ctx context.Context, table string, records []transit.GeometryRecord, replace bool) error {
	if err := p.ensureTable(ctx, table); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, deleteStatement(table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(records) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertStatement(table))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, record := range records {
			if _, err := stmt.ExecContext(ctx, record.Key, record.Geometry, nullString(record.Description)); err != nil {
				return fmt.Errorf("insert %s: %w", record.Key, err)
			}
		}
	}

	return tx.Commit()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func (p *PostgresSink) Close(ctx context.Context) error {
	return p.db.Close()
}
