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

package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DemoUser is an account created by SeedDemoUsers.
type DemoUser struct {
	Email    string
	Password string
	FullName string
	Role     models.Role
	Balances models.Balances
}

// DemoUsers are the accounts a fresh install can be seeded with.
func DemoUsers() []DemoUser {
	return []DemoUser{
		{
			Email:    "user@example.com",
			Password: "password123",
			FullName: "Demo User",
			Role:     models.RoleUser,
			Balances: models.Balances{
				"BTC":  decimal.RequireFromString("0.5"),
				"USDT": decimal.NewFromInt(1000),
				"ETH":  decimal.NewFromInt(2),
				"USD":  decimal.NewFromInt(5000),
			},
		},
		{
			Email:    "admin@broker.com",
			Password: "admin123",
			FullName: "Admin User",
			Role:     models.RoleAdmin,
		},
	}
}

// SeedDemoUsers creates the demo accounts that do not exist yet.
func SeedDemoUsers(ctx context.Context, st store.BrokerStore) error {
	for _, demo := range DemoUsers() {
		_, err := st.GetUserByEmail(ctx, demo.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to look up %s: %w", demo.Email, err)
		}

		hash, err := auth.HashPassword(demo.Password)
		if err != nil {
			return err
		}
		_, err = st.CreateUser(ctx, store.CreateUserParams{
			Id:           uuid.New().String(),
			Email:        demo.Email,
			PasswordHash: hash,
			FullName:     demo.FullName,
			Role:         demo.Role,
			Balances:     demo.Balances,
			KycStatus:    models.KycApproved,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil && !errors.Is(err, store.ErrDuplicateEmail) {
			return fmt.Errorf("failed to seed %s: %w", demo.Email, err)
		}
		zap.L().Info("Seeded demo user", zap.String("email", demo.Email), zap.String("role", string(demo.Role)))
	}
	return nil
}

// SelectUsers returns the user with emailFilter, or every user when the filter is empty.
func SelectUsers(ctx context.Context, st store.BrokerStore, emailFilter string) ([]models.User, error) {
	if emailFilter != "" {
		zap.L().Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := st.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return []models.User{*user}, nil
	}

	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
