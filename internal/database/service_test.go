package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
	"brokerdesk-go/internal/store/storetest"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDb(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)

	service, err := newServiceFromDB(db)
	if err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func TestServiceContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.BrokerStore {
		return setupTestDb(t)
	})
}

func TestNewService_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	cases := []models.DatabaseConfig{
		{Path: "", MaxOpenConns: 1, PingTimeout: time.Second},
		{Path: "x.db", MaxOpenConns: 0, PingTimeout: time.Second},
		{Path: "x.db", MaxOpenConns: 1, MaxIdleConns: -1, PingTimeout: time.Second},
		{Path: "x.db", MaxOpenConns: 1},
	}
	for _, cfg := range cases {
		if _, err := NewService(ctx, cfg); err == nil {
			t.Errorf("Expected error for config %+v", cfg)
		}
	}
}

func TestNewService_FileDatabase(t *testing.T) {
	path := t.TempDir() + "/broker.db"
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         path,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	defer service.Close()

	if err := service.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	u, err := service.CreateUser(context.Background(), store.CreateUserParams{
		Email: "file@example.com", PasswordHash: "h", FullName: "File User",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.Role != models.RoleUser {
		t.Errorf("Expected role user, got %s", u.Role)
	}
}

func TestSettle_NotPendingAfterReject(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	u, err := service.CreateUser(ctx, store.CreateUserParams{Email: "s@example.com", PasswordHash: "h", FullName: "S"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	w := &models.Withdrawal{Id: "w1", UserId: u.Id, Amount: mustDec("0"), Currency: "BTC", WalletAddress: "addr",
		Status: models.StatusPending, CreatedAt: time.Now()}
	if err := service.InsertWithdrawal(ctx, w); err != nil {
		t.Fatalf("InsertWithdrawal failed: %v", err)
	}
	if _, err := service.SettleWithdrawal(ctx, store.SettleParams{Id: "w1", At: time.Now()}); err != nil {
		t.Fatalf("SettleWithdrawal failed: %v", err)
	}
	_, err = service.SettleWithdrawal(ctx, store.SettleParams{Id: "w1", Approve: true, At: time.Now()})
	if !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("Expected ErrNotPending, got %v", err)
	}
}
