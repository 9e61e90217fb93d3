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
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/models"

	"go.uber.org/zap"
)

func printSnapshot(snap models.PriceSnapshot) {
	common.PrintHeader(fmt.Sprintf("MARKETS  %s", time.Now().Format("15:04:05")), common.DefaultWidth)

	symbols := make([]string, 0, len(snap.Crypto))
	for s := range snap.Crypto {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		q := snap.Crypto[s]
		note := ""
		if q.Fallback {
			note = " (fallback)"
		}
		fmt.Printf("%-6s %14s %8s%%%s\n", q.Symbol, common.FormatUSD(q.Usd), q.Change24h.StringFixed(2), note)
	}
	fmt.Printf("crypto updated %s\n\n", common.FormatTime(snap.CryptoUpdatedAt))

	pairs := make([]string, 0, len(snap.Forex))
	for p := range snap.Forex {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	for _, p := range pairs {
		q := snap.Forex[p]
		fmt.Printf("%-8s %12s %10s\n", q.Pair, q.Rate.StringFixed(4), q.Change.StringFixed(4))
	}
	fmt.Printf("forex updated %s\n", common.FormatTime(snap.ForexUpdatedAt))
}

func main() {
	onceFlag := flag.Bool("once", false, "Print one snapshot and exit")
	cachedFlag := flag.Bool("cached", false, "Read the snapshot a running server shared through Redis")
	everyFlag := flag.Duration("every", 5*time.Second, "Console refresh interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *cachedFlag {
		if services.Cache == nil {
			zap.L().Fatal("--cached needs a reachable REDIS_ADDR")
		}
		snap, ok, err := services.Cache.LoadSnapshot(ctx)
		if err != nil {
			zap.L().Fatal("Failed to read cached snapshot", zap.Error(err))
		}
		if !ok {
			fmt.Println("No snapshot cached yet; is the server running?")
			return
		}
		printSnapshot(snap)
		return
	}

	services.Feed.Start(ctx)
	printSnapshot(services.Feed.Snapshot())
	if *onceFlag {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(*everyFlag)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printSnapshot(services.Feed.Snapshot())
		case <-sigChan:
			zap.L().Info("Stopping price ticker")
			return
		}
	}
}
