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

	"go.uber.org/zap"
)

type setupStats struct {
	usersSeeded  int
	assetsListed int
	addressed    int
	failedAssets []string
}

// resolveCompanyAddresses asks custody for every asset's deposit address so the first
// customer request does not pay for wallet discovery.
func resolveCompanyAddresses(ctx context.Context, services *common.Services, stats *setupStats) {
	symbols := services.Assets.Symbols()
	for i, symbol := range symbols {
		asset, _ := services.Assets.Find(symbol)
		isLast := i == len(symbols)-1

		if services.Custody == nil {
			fmt.Printf("%s%-6s %-20s %s (catalog)\n", common.BoxPrefix(isLast), asset.Symbol, asset.Network, asset.CompanyWallet)
			stats.addressed++
			continue
		}

		addr, err := services.Custody.DepositAddress(ctx, asset.Symbol, asset.Network)
		if err != nil {
			zap.L().Error("Failed to resolve company deposit address",
				zap.String("asset", asset.Symbol),
				zap.String("network", asset.Network),
				zap.Error(err))
			fmt.Printf("%s%-6s %-20s FAILED\n", common.BoxPrefix(isLast), asset.Symbol, asset.Network)
			stats.failedAssets = append(stats.failedAssets, asset.Symbol)
			continue
		}
		fmt.Printf("%s%-6s %-20s %s (prime)\n", common.BoxPrefix(isLast), asset.Symbol, asset.Network, addr)
		stats.addressed++
	}
}

func main() {
	ctx := context.Background()

	skipDemoFlag := flag.Bool("no-demo", false, "Do not create the demo accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	zap.L().Info("Starting brokerdesk setup", zap.String("backend", cfg.Store.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	stats := setupStats{assetsListed: len(services.Assets)}

	if !*skipDemoFlag {
		before, err := services.Store.ListUsers(ctx)
		if err != nil {
			zap.L().Fatal("Failed to list users", zap.Error(err))
		}
		if err := common.SeedDemoUsers(ctx, services.Store); err != nil {
			zap.L().Fatal("Failed to seed demo users", zap.Error(err))
		}
		after, err := services.Store.ListUsers(ctx)
		if err != nil {
			zap.L().Fatal("Failed to list users", zap.Error(err))
		}
		stats.usersSeeded = len(after) - len(before)
	}

	users, err := services.Store.ListUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to list users", zap.Error(err))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	common.PrintHeader("USERS", common.DefaultWidth)
	for _, u := range users {
		marker := " "
		if u.Role == models.RoleAdmin {
			marker = "*"
		}
		fmt.Printf("%s %-30s %-20s kyc=%s\n", marker, u.Email, u.FullName, u.KycStatus)
	}

	common.PrintHeader("COMPANY DEPOSIT ADDRESSES", common.DefaultWidth)
	resolveCompanyAddresses(ctx, services, &stats)

	summary := fmt.Sprintf("SUMMARY: %d users (%d new), %d/%d assets addressed",
		len(users), stats.usersSeeded, stats.addressed, stats.assetsListed)
	common.PrintFooter(summary, common.DefaultWidth)

	if len(stats.failedAssets) > 0 {
		zap.L().Warn("Setup finished with unresolved addresses", zap.Strings("failed_assets", stats.failedAssets))
		return
	}
	zap.L().Info("Setup completed", zap.Int("users", len(users)), zap.Int("assets", stats.assetsListed))
}
