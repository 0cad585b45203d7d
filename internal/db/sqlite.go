// Package db opens the SQLite metadata store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // register sqlite3 driver
)

// Mode selects the pool configuration of an SQLite handle.
type Mode string

// Pool modes. A write pool holds a single connection and begins
// transactions with BEGIN IMMEDIATE; a read pool allows parallel readers.
const (
	ModeWrite Mode = "write"
	ModeRead  Mode = "read"
)

const (
	busyTimeoutMS      = "5000"
	journalMode        = "WAL"
	synchronous        = "NORMAL"
	defaultReadMaxOpen = 4
)

// Store holds the write and read pools of one metadata file.
type Store struct {
	Write *sql.DB
	Read  *sql.DB
}

// Close closes both pools.
func (s *Store) Close() error {
	return errors.Join(s.Read.Close(), s.Write.Close())
}

// OpenSQLite opens a pool for path in the given mode. readMaxOpen is only
// used by ModeRead; 0 picks the default.
func OpenSQLite(path string, mode Mode, readMaxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if readMaxOpen <= 0 {
			readMaxOpen = defaultReadMaxOpen
		}
		db.SetMaxOpenConns(readMaxOpen)
		db.SetMaxIdleConns(readMaxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// Open opens the metadata store at path and migrates it to the latest
// schema version.
func Open(ctx context.Context, path string, readMaxOpen int) (*Store, error) {
	write, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, write); err != nil {
		_ = write.Close()
		return nil, err
	}
	read, err := OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = write.Close()
		return nil, err
	}
	return &Store{Write: write, Read: read}, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMS)
	params.Set("_synchronous", synchronous)
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
