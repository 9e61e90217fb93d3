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
	"github.com/shopspring/decimal"
)

// Principal is the authenticated identity acting on the broker
type Principal struct {
	UserId    string
	Role      Role
	SessionId string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// ActionResult represents the outcome of a workflow operation
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResult carries the issued token with the logged in user
type LoginResult struct {
	ActionResult
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// DashboardStats aggregates pending work and volumes
type DashboardStats struct {
	TotalUsers         int                        `json:"totalUsers,omitempty"`
	PendingDeposits    int                        `json:"pendingDeposits"`
	PendingWithdrawals int                        `json:"pendingWithdrawals"`
	PendingTrades      int                        `json:"pendingTrades"`
	PendingKyc         int                        `json:"pendingKyc"`
	ApprovedDeposits   map[string]decimal.Decimal `json:"approvedDeposits"`
	UnreadMessages     int                        `json:"unreadMessages"`
}

// PortfolioLine is one valued balance
type PortfolioLine struct {
	Asset    string          `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
	UsdPrice decimal.Decimal `json:"usdPrice"`
	UsdValue decimal.Decimal `json:"usdValue"`
}

// Portfolio is the USD valuation of a user's balances
type Portfolio struct {
	Lines    []PortfolioLine `json:"lines"`
	TotalUsd decimal.Decimal `json:"totalUsd"`
}

// DepositInstructions tells a user where to send funds
type DepositInstructions struct {
	Currency   string          `json:"currency"`
	Network    string          `json:"network"`
	Address    string          `json:"address"`
	MinDeposit decimal.Decimal `json:"minDeposit"`
	Source     string          `json:"source"`
}
