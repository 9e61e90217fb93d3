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
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerdesk-go/internal/common"
	"brokerdesk-go/internal/config"
	"brokerdesk-go/internal/server"

	"go.uber.org/zap"
)

func main() {
	addrFlag := flag.String("addr", "", "Listen address (overrides HTTP_ADDR)")
	seedFlag := flag.Bool("seed", false, "Create the demo accounts if they do not exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addrFlag != "" {
		cfg.Http.Addr = *addrFlag
	}
	if *seedFlag {
		cfg.Database.SeedDemoUsers = true
		cfg.Document.SeedDemoUsers = true
	}

	_, loggerCleanup := common.InitializeLogger(cfg.Log)
	defer loggerCleanup()

	if err := config.RequireJwtSecret(cfg); err != nil {
		zap.L().Fatal("Refusing to start", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting brokerdesk server",
		zap.String("addr", cfg.Http.Addr),
		zap.String("backend", cfg.Store.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	services.Feed.Start(ctx)

	httpServer := &http.Server{
		Addr: cfg.Http.Addr,
		Handler: server.NewServer(server.Options{
			Service: services.Broker,
			Market:  services.Feed,
			Metrics: services.Metrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Http.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	} else {
		zap.L().Info("HTTP server stopped gracefully")
	}
	cancel()
}
