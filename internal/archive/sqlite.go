// Package archive keeps an append-only history of daily reset snapshots in a
// local SQLite file.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"backend-loket/internal/queue"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

type SQLiteArchive struct {
	db  *sql.DB
	log *log.Entry
}

// Open creates the file and schema if needed. Safe to call on an existing archive.
func Open(path string, logger *log.Logger) (*SQLiteArchive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create archive dir")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to archive")
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute %q", pragma)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply archive schema")
	}

	return &SQLiteArchive{db: db, log: logger.WithField("component", "archive")}, nil
}

func (a *SQLiteArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *SQLiteArchive) SaveSnapshot(ctx context.Context, s queue.Snapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO reset_snapshots
			(effective_date, reset_at, completed_forced, cancelled_forced, entry_count, snapshot_json, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Report.EffectiveDate,
		s.Report.ResetAt.UTC().Format(time.RFC3339Nano),
		s.Report.CompletedForced,
		s.Report.CancelledForced,
		len(s.Entries),
		string(body),
		s.TakenAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "insert snapshot")
	}

	a.log.WithFields(log.Fields{
		"effective_date": s.Report.EffectiveDate,
		"entries":        len(s.Entries),
	}).Info("reset snapshot archived")
	return nil
}

// Snapshots returns every archived run for effectiveDate, oldest first.
func (a *SQLiteArchive) Snapshots(ctx context.Context, effectiveDate string) ([]queue.Snapshot, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT snapshot_json FROM reset_snapshots WHERE effective_date = ? ORDER BY id ASC`, effectiveDate)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	var out []queue.Snapshot
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		var s queue.Snapshot
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			return nil, errors.Wrap(err, "decode snapshot")
		}
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate snapshots")
}
