package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/workout"
	_ "modernc.org/sqlite"
)

// CurrentSQLiteSchemaVersion is the latest user_version the SQLite store migrates to.
const CurrentSQLiteSchemaVersion = 1

type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens the history database at path in WAL mode and migrates it.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := verifyWALMode(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter repository.ListFilter) ([]workout.Session, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions
		 WHERE (? = '' OR owner_id = ?)
		 ORDER BY start_time DESC, rowid DESC
		 LIMIT ?`,
		filter.OwnerID, filter.OwnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []workout.Session{}
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*workout.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = ?`, id)
	s, err := scanSQLiteSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) Append(ctx context.Context, s workout.Session) error {
	if err := repository.ValidateAppend(s); err != nil {
		return err
	}
	exercises, err := encodeExercises(s.Exercises)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workout_sessions (id, owner_id, start_time, end_time, exercises, user_weight, user_height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.StartTime.UnixMilli(), s.EndTime.UnixMilli(), string(exercises), s.UserWeight, s.UserHeight)
	if err != nil {
		return fmt.Errorf("insert workout session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateByID(ctx context.Context, id string, patch repository.Patch) error {
	if patch.Empty() {
		return nil
	}
	encoded, err := encodeAnalysis(patch.Analysis)
	if err != nil {
		return err
	}
	var analysis sql.NullString
	if encoded != nil {
		analysis = sql.NullString{String: string(encoded), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE workout_sessions SET
		   analysis = COALESCE(?, analysis),
		   user_weight = COALESCE(?, user_weight),
		   user_height = COALESCE(?, user_height)
		 WHERE id = ?`,
		analysis, nullString(patch.UserWeight), nullString(patch.UserHeight), id)
	if err != nil {
		return fmt.Errorf("update workout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Shutdown() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (workout.Session, error) {
	var s workout.Session
	var startMS, endMS int64
	var exercises string
	var analysis sql.NullString
	if err := row.Scan(&s.ID, &s.OwnerID, &startMS, &endMS, &exercises, &s.UserWeight, &s.UserHeight, &analysis); err != nil {
		return workout.Session{}, err
	}
	s.StartTime = time.UnixMilli(startMS).UTC()
	end := time.UnixMilli(endMS).UTC()
	s.EndTime = &end

	var err error
	if s.Exercises, err = decodeExercises([]byte(exercises)); err != nil {
		return workout.Session{}, err
	}
	if analysis.Valid {
		if s.Analysis, err = decodeAnalysis([]byte(analysis.String)); err != nil {
			return workout.Session{}, err
		}
	}
	return s, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func migrateSQLite(db *sql.DB) error {
	version, err := sqliteUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS workout_sessions (
		  id          TEXT PRIMARY KEY,
		  owner_id    TEXT NOT NULL DEFAULT '',
		  start_time  INTEGER NOT NULL,
		  end_time    INTEGER NOT NULL,
		  exercises   TEXT NOT NULL,
		  user_weight TEXT NOT NULL DEFAULT '',
		  user_height TEXT NOT NULL DEFAULT '',
		  analysis    TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_workout_sessions_owner
		ON workout_sessions(owner_id, start_time DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}
	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func sqliteUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}
