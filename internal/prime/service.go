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

package prime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brokerdesk-go/internal/httpclient"
	"brokerdesk-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"go.uber.org/zap"
)

const tradingWalletType = "TRADING"

var ErrNoWallet = errors.New("no trading wallet for asset")

type fetchFunc func(ctx context.Context, symbol, network string) (string, error)

// Service resolves company deposit addresses from the portfolio's Prime wallets.
// Addresses are created once per asset and network and then served from memory.
type Service struct {
	walletsSvc  wallets.WalletsService
	portfolioId string
	fetch       fetchFunc

	mu    sync.Mutex
	cache map[string]string
}

func NewService(cfg models.PrimeConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY, PRIME_PORTFOLIO_ID")
	}

	httpClient, err := httpclient.New(60 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	creds := &credentials.Credentials{
		AccessKey:  cfg.AccessKey,
		Passphrase: cfg.Passphrase,
		SigningKey: cfg.SigningKey,
	}
	restClient := client.NewRestClient(creds, *httpClient)

	s := &Service{
		walletsSvc:  wallets.NewWalletsService(restClient),
		portfolioId: cfg.PortfolioId,
		cache:       map[string]string{},
	}
	s.fetch = s.createAddress
	return s, nil
}

// DepositAddress returns the company address for symbol on network.
func (s *Service) DepositAddress(ctx context.Context, symbol, network string) (string, error) {
	key := cacheKey(symbol, network)

	s.mu.Lock()
	addr, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return addr, nil
	}

	addr, err := s.fetch(ctx, symbol, network)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if existing, ok := s.cache[key]; ok {
		addr = existing
	} else {
		s.cache[key] = addr
	}
	s.mu.Unlock()
	return addr, nil
}

// createAddress finds the first TRADING wallet holding symbol and creates an address on it.
func (s *Service) createAddress(ctx context.Context, symbol, network string) (string, error) {
	listed, err := s.walletsSvc.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: s.portfolioId,
		Type:        tradingWalletType,
		Symbols:     []string{symbol},
	})
	if err != nil {
		return "", fmt.Errorf("unable to list wallets: %w", err)
	}

	var walletId string
	for _, w := range listed.Wallets {
		if strings.EqualFold(w.Symbol, symbol) {
			walletId = w.Id
			break
		}
	}
	if walletId == "" {
		return "", fmt.Errorf("%w: %s", ErrNoWallet, symbol)
	}

	created, err := s.walletsSvc.CreateWalletAddress(ctx, &wallets.CreateWalletAddressRequest{
		PortfolioId: s.portfolioId,
		WalletId:    walletId,
		NetworkId:   network,
	})
	if err != nil {
		return "", fmt.Errorf("unable to create wallet address: %w", err)
	}

	zap.L().Info("Created company deposit address",
		zap.String("asset", symbol),
		zap.String("network", network),
		zap.String("wallet_id", walletId),
		zap.String("account_identifier", created.AccountIdentifier))
	return created.Address, nil
}

func cacheKey(symbol, network string) string {
	return strings.ToUpper(symbol) + "-" + network
}
