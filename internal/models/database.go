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

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type KycStatus string

const (
	KycPending  KycStatus = "pending"
	KycApproved KycStatus = "approved"
	KycRejected KycStatus = "rejected"
)

// DefaultAssets are seeded at zero for every new user.
var DefaultAssets = []string{"BTC", "ETH", "USDT", "USD"}

// Balances maps an asset symbol to the amount held.
type Balances map[string]decimal.Decimal

// Get returns the balance for asset, zero when absent.
func (b Balances) Get(asset string) decimal.Decimal {
	if v, ok := b[asset]; ok {
		return v
	}
	return decimal.Zero
}

// ZeroBalances returns a map with every default asset at zero.
func ZeroBalances() Balances {
	b := make(Balances, len(DefaultAssets))
	for _, a := range DefaultAssets {
		b[a] = decimal.Zero
	}
	return b
}

// User represents a registered account
type User struct {
	Id           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"passwordHash,omitempty"`
	FullName     string    `db:"full_name" json:"fullName"`
	Role         Role      `db:"role" json:"role"`
	Balance      Balances  `json:"balance"`
	KycStatus    KycStatus `db:"kyc_status" json:"kycStatus"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Public returns a copy without the password hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// NormalizeEmail lowercases and trims an email for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id        string          `db:"id"`
	UserId    string          `db:"user_id"`
	Asset     string          `db:"asset"`
	Balance   decimal.Decimal `db:"balance"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type MovementKind string

const (
	MovementOpening    MovementKind = "opening"
	MovementDeposit    MovementKind = "deposit"
	MovementWithdrawal MovementKind = "withdrawal"
	MovementTrade      MovementKind = "trade"
)

// BalanceMovement is the immutable audit row for one applied leg (cold data)
type BalanceMovement struct {
	Id            string          `db:"id" json:"id"`
	UserId        string          `db:"user_id" json:"userId"`
	Asset         string          `db:"asset" json:"asset"`
	Kind          MovementKind    `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	Reference     string          `db:"reference" json:"reference"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Leg is one signed balance change produced by a transition.
type Leg struct {
	UserId string
	Asset  string
	Amount decimal.Decimal
	Kind   MovementKind
	Ref    string
}

// Session is a server-side record of an issued token.
type Session struct {
	Id        string    `db:"id" json:"id"`
	UserId    string    `db:"user_id" json:"userId"`
	Role      Role      `db:"role" json:"role"`
	IssuedAt  time.Time `db:"issued_at" json:"issuedAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
