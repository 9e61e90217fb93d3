/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.BrokerStore.
var _ store.BrokerStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("unable to ping database: %w", err), closeErr)
	}

	service, err := newServiceFromDB(db)
	if err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// newServiceFromDB wraps an open handle and creates the schema.
func newServiceFromDB(db *sql.DB) (*Service, error) {
	subledger := NewSubledgerService(db)
	service := &Service{db: db, subledger: subledger}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	if err := subledger.InitSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping reports whether the database answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		kyc_status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		proof_image TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		approved_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deposits_user_status ON deposits(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status);

	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		processed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_user_status ON withdrawals(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		type TEXT NOT NULL,
		market TEXT NOT NULL,
		pair TEXT NOT NULL,
		amount TEXT NOT NULL,
		price TEXT NOT NULL,
		total TEXT NOT NULL,
		fee TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		executed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_user_status ON trades(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);

	CREATE TABLE IF NOT EXISTS kyc_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		user_name TEXT NOT NULL,
		user_email TEXT NOT NULL,
		document_type TEXT NOT NULL,
		document_number TEXT NOT NULL,
		front_image TEXT NOT NULL DEFAULT '',
		back_image TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_kyc_user_status ON kyc_requests(user_id, status);

	CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp TIMESTAMP,
		read BOOLEAN NOT NULL DEFAULT 0,
		user_name TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_messages(user_id);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		issued_at TIMESTAMP,
		expires_at TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Subledger convenience methods

func (s *Service) GetBalances(ctx context.Context, userId string) (models.Balances, error) {
	return s.subledger.GetBalances(ctx, userId)
}

func (s *Service) ListMovements(ctx context.Context, userId, asset string, limit, offset int) ([]models.BalanceMovement, error) {
	return s.subledger.ListMovements(ctx, userId, asset, limit, offset)
}

func (s *Service) ReconcileUserBalance(ctx context.Context, userId, asset string) error {
	return s.subledger.ReconcileBalance(ctx, userId, asset)
}

// settle runs the pending -> terminal compare-and-swap, then apply inside the same
// transaction so side effects commit or roll back with the status change.
func (s *Service) settle(ctx context.Context, table, query string, params store.SettleParams, status models.Status, apply func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	at := params.At.UTC()
	result, err := tx.ExecContext(ctx, query, string(status), params.AdminNote, at, params.Id)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		var id string
		err := tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE id = ?", params.Id).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up %s record: %w", table, err)
		}
		return store.ErrNotPending
	}

	if apply != nil {
		if err := apply(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// insertError maps a missing owning user to store.ErrNotFound.
func insertError(what, userId string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
