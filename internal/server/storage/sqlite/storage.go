package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const memoryPath = ":memory:"

// Storage represents SQLite storage implementation
type Storage struct {
	db  *sql.DB // писатель: BEGIN IMMEDIATE, одно соединение
	rdb *sql.DB // читатели: обычные транзакции поверх WAL
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Писатель открывает транзакции через BEGIN IMMEDIATE: это и есть
	// эксклюзивная блокировка записи, читатели в WAL режиме ей не мешают
	db, err := open(ctx, dbPath, "immediate")
	if err != nil {
		return nil, err
	}

	// SQLite поддерживает только одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	storage := &Storage{db: db, rdb: db}

	// In-memory база существует только внутри одного соединения,
	// поэтому отдельный пул читателей возможен только для файла
	if dbPath != memoryPath {
		rdb, err := open(ctx, dbPath, "deferred")
		if err != nil {
			db.Close()
			return nil, err
		}
		rdb.SetMaxOpenConns(8)
		storage.rdb = rdb
	}

	// Запускаем миграции
	if err := storage.runMigrations(); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// open opens a connection pool; pragmas go through the DSN so that every
// pooled connection gets them, not only the first one
func open(ctx context.Context, dbPath, txLock string) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "synchronous(NORMAL)")
	if dbPath != memoryPath {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	params.Set("_txlock", txLock)

	db, err := sql.Open("sqlite", dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes the database connections
func (s *Storage) Close() error {
	var rerr error
	if s.rdb != s.db {
		rerr = s.rdb.Close()
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	return rerr
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying writer connection for testing purposes
func (s *Storage) DB() *sql.DB {
	return s.db
}
