package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"
	"brokerdesk-go/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()
	s, err := NewService(models.DocumentConfig{
		Path:        filepath.Join(dir, "broker_pro_db_v1.json"),
		SessionPath: filepath.Join(dir, "broker_pro_session.json"),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestServiceContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.BrokerStore {
		return newTestService(t, t.TempDir())
	})
}

func TestNewService_EmptyPath(t *testing.T) {
	_, err := NewService(models.DocumentConfig{})
	assert.Error(t, err)
}

func TestReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newTestService(t, dir)
	u, err := first.CreateUser(ctx, store.CreateUserParams{
		Email:        "persist@example.com",
		PasswordHash: "hash",
		FullName:     "Persist",
		Balances:     models.Balances{"BTC": decimal.RequireFromString("0.5")},
	})
	require.NoError(t, err)
	require.NoError(t, first.SaveSession(ctx, &models.Session{Id: "tok", UserId: u.Id, Role: models.RoleUser}))

	second := newTestService(t, dir)
	got, err := second.GetUserByEmail(ctx, "persist@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, decimal.RequireFromString("0.5").Equal(got.Balance.Get("BTC")))

	sess, err := second.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, u.Id, sess.UserId)
	require.NoError(t, second.ReconcileUserBalance(ctx, u.Id, "BTC"))
}

func TestFailedMutationLeavesDocument(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := newTestService(t, dir)

	_, err := s.CreateUser(ctx, store.CreateUserParams{Email: "a@example.com", PasswordHash: "h", FullName: "A"})
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, "broker_pro_db_v1.json"))
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, store.CreateUserParams{Email: "A@example.com", PasswordHash: "h", FullName: "A2"})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)

	after, err := os.ReadFile(filepath.Join(dir, "broker_pro_db_v1.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestReturnedUserIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, t.TempDir())
	u, err := s.CreateUser(ctx, store.CreateUserParams{Email: "c@example.com", PasswordHash: "h", FullName: "C"})
	require.NoError(t, err)

	u.Balance["BTC"] = decimal.NewFromInt(100)

	b, err := s.GetBalances(ctx, u.Id)
	require.NoError(t, err)
	assert.True(t, b.Get("BTC").IsZero())
}
