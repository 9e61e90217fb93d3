package prime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"brokerdesk-go/internal/models"
)

func newFakeService(fetch fetchFunc) *Service {
	return &Service{portfolioId: "pf-1", fetch: fetch, cache: map[string]string{}}
}

func TestNewService_MissingCredentials(t *testing.T) {
	if _, err := NewService(models.PrimeConfig{AccessKey: "a"}); err == nil {
		t.Fatal("expected error without full credentials")
	}
}

func TestDepositAddress_Caches(t *testing.T) {
	calls := 0
	s := newFakeService(func(ctx context.Context, symbol, network string) (string, error) {
		calls++
		return "addr-" + symbol + "-" + network, nil
	})

	for i := 0; i < 3; i++ {
		addr, err := s.DepositAddress(context.Background(), "BTC", "bitcoin-mainnet")
		if err != nil {
			t.Fatalf("DepositAddress: %v", err)
		}
		if addr != "addr-BTC-bitcoin-mainnet" {
			t.Fatalf("addr = %s", addr)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}

	if _, err := s.DepositAddress(context.Background(), "ETH", "ethereum-mainnet"); err != nil {
		t.Fatalf("DepositAddress: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a second call for a new asset, got %d", calls)
	}
}

func TestDepositAddress_ErrorNotCached(t *testing.T) {
	fail := true
	s := newFakeService(func(ctx context.Context, symbol, network string) (string, error) {
		if fail {
			return "", ErrNoWallet
		}
		return "addr", nil
	})

	if _, err := s.DepositAddress(context.Background(), "USDT", "tron-mainnet"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
	fail = false
	addr, err := s.DepositAddress(context.Background(), "USDT", "tron-mainnet")
	if err != nil || addr != "addr" {
		t.Fatalf("retry after failure = %q, %v", addr, err)
	}
}

func TestDepositAddress_ConcurrentCallersAgree(t *testing.T) {
	var mu sync.Mutex
	n := 0
	s := newFakeService(func(ctx context.Context, symbol, network string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return "first", nil
		}
		return "later", nil
	})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.DepositAddress(context.Background(), "BTC", "bitcoin-mainnet")
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("callers saw different addresses: %v", results)
		}
	}
}
