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

package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"

	"go.uber.org/zap"
)

// QuoteStore shares snapshots and charts with other processes.
type QuoteStore interface {
	SaveSnapshot(ctx context.Context, snap models.PriceSnapshot) error
	SaveChart(ctx context.Context, coinId string, days int, points []models.ChartPoint) error
	LoadChart(ctx context.Context, coinId string, days int) ([]models.ChartPoint, bool, error)
}

// FeedConfig contains configuration for Feed
type FeedConfig struct {
	Crypto         *CoinGecko
	Forex          *ForexGenerator
	Cache          QuoteStore
	Metrics        *metrics.Metrics
	CryptoInterval time.Duration
	ForexInterval  time.Duration
}

// Feed keeps the latest price snapshot fresh in the background
type Feed struct {
	crypto  *CoinGecko
	forex   *ForexGenerator
	cache   QuoteStore
	metrics *metrics.Metrics

	cryptoInterval time.Duration
	forexInterval  time.Duration

	mutex sync.RWMutex
	snap  models.PriceSnapshot

	// Control channels
	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewFeed(cfg FeedConfig) *Feed {
	if cfg.CryptoInterval <= 0 {
		cfg.CryptoInterval = 30 * time.Second
	}
	if cfg.ForexInterval <= 0 {
		cfg.ForexInterval = 3 * time.Second
	}
	if cfg.Forex == nil {
		cfg.Forex = NewForexGenerator(0)
	}
	return &Feed{
		crypto:         cfg.Crypto,
		forex:          cfg.Forex,
		cache:          cfg.Cache,
		metrics:        cfg.Metrics,
		cryptoInterval: cfg.CryptoInterval,
		forexInterval:  cfg.ForexInterval,
		snap: models.PriceSnapshot{
			Crypto: map[string]models.CryptoQuote{},
			Forex:  map[string]models.ForexQuote{},
		},
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start primes the snapshot and begins polling
func (f *Feed) Start(ctx context.Context) {
	zap.L().Info("Starting price feed")

	f.RefreshCrypto(ctx)
	f.TickForex()

	f.mutex.Lock()
	f.started = true
	f.mutex.Unlock()
	go f.pollLoop(ctx)

	zap.L().Info("Price feed started",
		zap.Duration("crypto_interval", f.cryptoInterval),
		zap.Duration("forex_interval", f.forexInterval))
}

// Stop gracefully stops the feed
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		zap.L().Info("Stopping price feed")
		close(f.stopChan)
		f.mutex.RLock()
		started := f.started
		f.mutex.RUnlock()
		if started {
			<-f.doneChan
		}
		zap.L().Info("Price feed stopped")
	})
}

func (f *Feed) pollLoop(ctx context.Context) {
	defer close(f.doneChan)

	cryptoTicker := time.NewTicker(f.cryptoInterval)
	defer cryptoTicker.Stop()
	forexTicker := time.NewTicker(f.forexInterval)
	defer forexTicker.Stop()

	for {
		select {
		case <-cryptoTicker.C:
			f.RefreshCrypto(ctx)
		case <-forexTicker.C:
			f.TickForex()
		case <-f.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RefreshCrypto fetches crypto quotes, falling back to baselines on failure.
func (f *Feed) RefreshCrypto(ctx context.Context) {
	if f.crypto == nil {
		return
	}
	start := time.Now()
	quotes, err := f.crypto.Prices(ctx)
	if f.metrics != nil {
		f.metrics.PriceLatency.WithLabelValues("coingecko").Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "fallback"
		}
		f.metrics.PriceFetches.WithLabelValues("coingecko", status).Inc()
	}

	f.mutex.Lock()
	f.snap.Crypto = quotes
	f.snap.CryptoUpdatedAt = time.Now().UTC()
	f.mutex.Unlock()

	f.publish(ctx)
}

// TickForex advances the synthetic forex rates one step.
func (f *Feed) TickForex() {
	quotes := f.forex.Tick()

	f.mutex.Lock()
	f.snap.Forex = quotes
	f.snap.ForexUpdatedAt = time.Now().UTC()
	f.mutex.Unlock()

	if f.metrics != nil {
		f.metrics.PriceFetches.WithLabelValues("forex", "ok").Inc()
	}
}

// Snapshot returns a copy of the latest prices
func (f *Feed) Snapshot() models.PriceSnapshot {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := models.PriceSnapshot{
		Crypto:          make(map[string]models.CryptoQuote, len(f.snap.Crypto)),
		Forex:           make(map[string]models.ForexQuote, len(f.snap.Forex)),
		CryptoUpdatedAt: f.snap.CryptoUpdatedAt,
		ForexUpdatedAt:  f.snap.ForexUpdatedAt,
	}
	for k, v := range f.snap.Crypto {
		out.Crypto[k] = v
	}
	for k, v := range f.snap.Forex {
		out.Forex[k] = v
	}
	return out
}

// Chart returns market chart points, served from the cache when possible.
func (f *Feed) Chart(ctx context.Context, coinId string, days int) ([]models.ChartPoint, error) {
	if f.crypto == nil {
		return nil, fmt.Errorf("crypto prices not configured")
	}
	if f.cache != nil {
		points, ok, err := f.cache.LoadChart(ctx, coinId, days)
		if err != nil {
			zap.L().Warn("Chart cache read failed", zap.String("coin_id", coinId), zap.Error(err))
		} else if ok {
			return points, nil
		}
	}

	points, err := f.crypto.MarketChart(ctx, coinId, days)
	if f.metrics != nil {
		f.metrics.PriceFetches.WithLabelValues("coingecko_chart", metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		if err := f.cache.SaveChart(ctx, coinId, days, points); err != nil {
			zap.L().Warn("Chart cache write failed", zap.String("coin_id", coinId), zap.Error(err))
		}
	}
	return points, nil
}

func (f *Feed) publish(ctx context.Context) {
	if f.cache == nil {
		return
	}
	if err := f.cache.SaveSnapshot(ctx, f.Snapshot()); err != nil {
		zap.L().Warn("Failed to publish price snapshot", zap.Error(err))
		if f.metrics != nil {
			f.metrics.Errors.WithLabelValues("quote_cache").Inc()
		}
	}
}
