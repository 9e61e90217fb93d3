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
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role, kyc string
	if err := row.Scan(&u.Id, &u.Email, &u.PasswordHash, &u.FullName, &role, &kyc, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.KycStatus = models.KycStatus(kyc)
	return &u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryListUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	balances, err := s.subledger.allBalances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Balance = balances[users[i].Id]
		if users[i].Balance == nil {
			users[i].Balance = models.Balances{}
		}
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, models.NormalizeEmail(email))
}

func (s *Service) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.Balance, err = s.subledger.GetBalances(ctx, u.Id); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	if params.Id == "" {
		params.Id = uuid.New().String()
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now()
	}
	if params.Role == "" {
		params.Role = models.RoleUser
	}
	if params.KycStatus == "" {
		params.KycStatus = models.KycPending
	}
	balances := models.ZeroBalances()
	for asset, amount := range params.Balances {
		balances[asset] = amount
	}
	email := models.NormalizeEmail(params.Email)
	at := params.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, queryInsertUser, params.Id, email, params.PasswordHash, params.FullName,
		string(params.Role), string(params.KycStatus), at, at)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	for asset, amount := range balances {
		if amount.IsZero() {
			if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, uuid.New().String(), params.Id, asset, "0", 1, at); err != nil {
				return nil, fmt.Errorf("failed to create account balance: %w", err)
			}
			continue
		}
		leg := models.Leg{UserId: params.Id, Asset: asset, Amount: amount, Kind: models.MovementOpening, Ref: params.Id}
		if _, err := s.subledger.applyLeg(ctx, tx, leg, at); err != nil {
			return nil, fmt.Errorf("failed to seed %s balance: %w", asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("User created",
		zap.String("id", params.Id),
		zap.String("email", email),
		zap.String("role", string(params.Role)))

	return s.GetUserById(ctx, params.Id)
}

func (s *Service) UpdateUser(ctx context.Context, userId string, patch store.UserPatch) (*models.User, error) {
	var role *string
	if patch.Role != nil {
		r := string(*patch.Role)
		role = &r
	}

	result, err := s.db.ExecContext(ctx, queryUpdateUser, patch.FullName, patch.PasswordHash, role, time.Now().UTC(), userId)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserById(ctx, userId)
}
