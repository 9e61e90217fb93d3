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
	"strings"

	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/models"

	"go.uber.org/zap"
)

func printInstructions(in *models.DepositInstructions, isLast bool) {
	fmt.Printf("%s%-6s %-20s min %-10s %s [%s]\n",
		common.BoxPrefix(isLast),
		in.Currency,
		in.Network,
		in.MinDeposit.String(),
		in.Address,
		in.Source)
}

func main() {
	ctx := context.Background()

	assetFlag := flag.String("asset", "", "Show a single asset symbol (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	symbols := services.Assets.Symbols()
	if *assetFlag != "" {
		symbols = []string{strings.ToUpper(*assetFlag)}
	}

	common.PrintHeader("DEPOSIT INSTRUCTIONS", common.WideWidth)
	failed := 0
	for i, symbol := range symbols {
		in, err := services.Broker.DepositInstructions(ctx, symbol)
		if err != nil {
			zap.L().Error("Failed to get deposit instructions", zap.String("asset", symbol), zap.Error(err))
			failed++
			continue
		}
		printInstructions(in, i == len(symbols)-1)
	}

	source := "catalog"
	if services.Custody != nil {
		source = "prime"
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d assets (%d failed), addresses from %s", len(symbols), failed, source), common.WideWidth)
}
