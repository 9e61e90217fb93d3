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
package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalBalances     int
	usersWithBalances int
	reconciled        int
	drifted           int
}

func printBalances(balances models.Balances) int {
	assets := make([]string, 0, len(balances))
	for asset, amount := range balances {
		if !amount.IsZero() {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	for i, asset := range assets {
		fmt.Printf("%s%-6s %24s\n", common.BoxPrefix(i == len(assets)-1), asset, balances[asset].String())
	}
	return len(assets)
}

func printMovements(movements []models.BalanceMovement) {
	if len(movements) == 0 {
		return
	}
	fmt.Println("│")
	for i, m := range movements {
		fmt.Printf("%s%s %-6s %-16s %16s -> %-16s ref=%s\n",
			common.BoxPrefix(i == len(movements)-1),
			common.FormatTime(m.CreatedAt),
			m.Asset,
			m.Kind,
			m.Amount.String(),
			m.BalanceAfter.String(),
			common.ShortId(m.Reference))
	}
}

// reconcileUser rebuilds each balance from its movement history.
func reconcileUser(ctx context.Context, st store.BrokerStore, user models.User, stats *balanceStats) {
	for asset := range user.Balance {
		if err := st.ReconcileUserBalance(ctx, user.Id, asset); err != nil {
			stats.drifted++
			zap.L().Warn("Balance does not match movement history",
				zap.String("user_id", user.Id),
				zap.String("asset", asset),
				zap.Error(err))
			continue
		}
		stats.reconciled++
	}
}

func processUser(ctx context.Context, st store.BrokerStore, user models.User, history int) (int, error) {
	balances, err := st.GetBalances(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	common.PrintSection(fmt.Sprintf("User: %s (%s)", user.FullName, user.Email),
		"ID: "+user.Id,
		fmt.Sprintf("Role: %s  KYC: %s", user.Role, user.KycStatus))
	count := printBalances(balances)

	if history > 0 {
		movements, err := st.ListMovements(ctx, user.Id, "", history, 0)
		if err != nil {
			return count, fmt.Errorf("failed to get movements: %w", err)
		}
		printMovements(movements)
	}
	return count, nil
}

func main() {
	ctx := context.Background()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 0, "Show the most recent N balance movements per user")
	reconcileFlag := flag.Bool("reconcile", false, "Check every balance against its movement history")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	logger.Info("Starting balance query", zap.String("backend", cfg.Store.Backend))

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	users, err := common.SelectUsers(ctx, st, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to load users", zap.Error(err))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		count, err := processUser(ctx, st, user, *historyFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("email", user.Email),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersWithBalances++
			stats.totalBalances += count
		}
		if *reconcileFlag {
			reconcileUser(ctx, st, user, &stats)
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d non-zero balances across %d users queried)",
		stats.usersWithBalances, stats.totalBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf("\nRECONCILE: %d consistent, %d drifted", stats.reconciled, stats.drifted)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("total_balances", stats.totalBalances),
		zap.Int("drifted", stats.drifted))
}
