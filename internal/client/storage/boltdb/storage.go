// Package boltdb локальное хранилище клиента в одном файле bbolt:
// сессия, текущий changeset и outbox подготовленных правок.
package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// schemaVersion увеличивается при несовместимом изменении формата бакетов
const schemaVersion = 1

// openTimeout ожидание файловой блокировки, пока файл держит другой запуск клиента
const openTimeout = time.Second

var (
	bucketAuth     = []byte("auth")
	bucketOutbox   = []byte("outbox")
	bucketMetadata = []byte("metadata")

	keySchemaVersion = []byte("schema_version")
)

var (
	// ErrLocked файл базы занят другим процессом клиента
	ErrLocked = errors.New("local database is used by another mapkeeper process")
	// ErrSchemaVersion файл создан несовместимой версией клиента
	ErrSchemaVersion = errors.New("unsupported local database version")
)

// Storage клиентское хранилище поверх bbolt
type Storage struct {
	db *bbolt.DB
}

// New открывает или создает базу по пути dbPath
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
		}
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close закрывает базу, повторный вызов ничего не делает
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// init создает бакеты и проверяет версию формата
func (s *Storage) init() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAuth, bucketOutbox, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMetadata)
		raw := meta.Get(keySchemaVersion)
		if raw == nil {
			return meta.Put(keySchemaVersion, encodeUint64(schemaVersion))
		}
		if len(raw) != 8 || binary.BigEndian.Uint64(raw) != schemaVersion {
			return fmt.Errorf("%w: %x", ErrSchemaVersion, raw)
		}
		return nil
	})
}

// view выполняет fn в транзакции чтения над бакетом name
func (s *Storage) view(ctx context.Context, name []byte, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return fmt.Errorf("%s bucket not found", name)
		}
		return fn(b)
	})
}

// update выполняет fn в транзакции записи над бакетом name
func (s *Storage) update(ctx context.Context, name []byte, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(name)
		if b == nil {
			return fmt.Errorf("%s bucket not found", name)
		}
		return fn(b)
	})
}

// encodeUint64 big-endian, чтобы порядок ключей совпадал с порядком чисел
func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
