package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultFileName = "neurotrack.db"

// PoolOptions bounds the sql.DB connection pool. SQLite serialises writers,
// so a small pool is enough.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

var defaultPool = PoolOptions{MaxOpen: 8, MaxIdle: 4, MaxLifetime: 30 * time.Minute}

// Statement names the queries prepared when the store opens.
type Statement string

const (
	StmtInsertSample  Statement = "insert_eeg_sample"
	StmtSelectSamples Statement = "select_eeg_samples"
	StmtGetUser       Statement = "get_user"
	StmtGetSession    Statement = "get_session"
)

var statements = map[Statement]string{
	StmtInsertSample: `INSERT INTO eeg_data (session_id, timestamp, channel1, channel2)
		VALUES (?, ?, ?, ?)`,
	StmtSelectSamples: `SELECT timestamp, channel1, channel2
		FROM eeg_data WHERE session_id = ? ORDER BY timestamp ASC, id ASC`,
	StmtGetUser: `SELECT id, name, created_at FROM users WHERE id = ?`,
	StmtGetSession: `SELECT id, user_id, timestamp, COALESCE(notes, '')
		FROM sessions WHERE id = ?`,
}

// DB is the session store: a SQLite handle with its prepared statements.
type DB struct {
	*sql.DB
	path string
	pool PoolOptions

	mu       sync.RWMutex
	prepared map[Statement]*sql.Stmt
}

// NewDB opens (and creates if needed) the session store under dataDir and
// brings its schema up to date.
func NewDB(dataDir, fileName string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if fileName == "" {
		fileName = DefaultFileName
	}
	path := filepath.Join(dataDir, fileName)

	// WAL lets readers run beside the single writer
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(defaultPool.MaxOpen)
	sqlDB.SetMaxIdleConns(defaultPool.MaxIdle)
	sqlDB.SetConnMaxLifetime(defaultPool.MaxLifetime)

	db := &DB{DB: sqlDB, path: path, pool: defaultPool}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.prepare(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	slog.Info("Session store opened", "path", path, "max_open_conns", db.pool.MaxOpen)
	return db, nil
}

// Path is the location of the database file.
func (db *DB) Path() string {
	return db.path
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			notes TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS eeg_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			timestamp REAL NOT NULL, -- unix seconds
			channel1 REAL NOT NULL,
			channel2 REAL NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS lifestyle_context (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			sleep_hours REAL,
			sleep_quality INTEGER CHECK(sleep_quality BETWEEN 1 AND 5),
			last_meal_type TEXT CHECK(last_meal_type IN ('balanced', 'high-protein', 'high-carb', 'light', 'skip')),
			hours_since_meal REAL,
			meal_size TEXT CHECK(meal_size IN ('small', 'medium', 'large')),
			meal_quality INTEGER CHECK(meal_quality BETWEEN 1 AND 5),
			hydration_level INTEGER CHECK(hydration_level BETWEEN 1 AND 5),
			caffeine_intake INTEGER,
			exercise_type TEXT,
			exercise_duration_mins INTEGER,
			mood_score INTEGER CHECK(mood_score BETWEEN 1 AND 5),
			focus_score INTEGER CHECK(focus_score BETWEEN 1 AND 5),
			mental_clarity INTEGER CHECK(mental_clarity BETWEEN 1 AND 5),
			activity_type TEXT CHECK(activity_type IN ('deep_work', 'creative', 'learning', 'rest', 'other')),
			time_of_day TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			mood TEXT,
			energy_level INTEGER CHECK(energy_level BETWEEN 1 AND 5),
			stress_level INTEGER CHECK(stress_level BETWEEN 1 AND 5),
			productivity_score INTEGER CHECK(productivity_score BETWEEN 1 AND 5),
			notes TEXT,
			tags TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS diet_log (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			meal_type TEXT CHECK(meal_type IN ('breakfast', 'lunch', 'dinner', 'snack')),
			food_items TEXT, -- JSON array
			calories INTEGER,
			protein REAL,
			carbs REAL,
			fats REAL,
			fiber REAL,
			sugar REAL,
			notes TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_eeg_data_session ON eeg_data(session_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_session ON journal_entries(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_diet_log_session ON diet_log(session_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (db *DB) prepare() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.prepared = make(map[Statement]*sql.Stmt, len(statements))
	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

// Stmt returns the prepared statement called name.
func (db *DB) Stmt(name Statement) (*sql.Stmt, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stmt, ok := db.prepared[name]
	if !ok {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// PoolStats reports connection pool usage for the health endpoint.
func (db *DB) PoolStats() map[string]interface{} {
	stats := db.Stats()
	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": db.pool.MaxOpen,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close releases the prepared statements and the connection pool.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = nil

	return db.DB.Close()
}
