package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/docstore"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTxHash = "0x8f3a2b1c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"

type staticPrices struct{ snap models.PriceSnapshot }

func (p staticPrices) Snapshot() models.PriceSnapshot { return p.snap }

func testSnapshot() models.PriceSnapshot {
	usd := func(v string) models.CryptoQuote { return models.CryptoQuote{Usd: decimal.RequireFromString(v)} }
	return models.PriceSnapshot{
		Crypto: map[string]models.CryptoQuote{
			"BTC":  usd("45000"),
			"ETH":  usd("2500"),
			"USDT": usd("1"),
			"USD":  usd("1"),
		},
		Forex: map[string]models.ForexQuote{
			"EUR/USD": {Pair: "EUR/USD", Rate: decimal.RequireFromString("1.1")},
			"USD/JPY": {Pair: "USD/JPY", Rate: decimal.RequireFromString("150")},
		},
	}
}

type fakeMirror struct {
	mu                            sync.Mutex
	deposits, withdrawals, trades []string
	err                           error
}

func (m *fakeMirror) MirrorDeposit(ctx context.Context, d *models.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deposits = append(m.deposits, d.Id)
	return m.err
}

func (m *fakeMirror) MirrorWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals = append(m.withdrawals, w.Id)
	return m.err
}

func (m *fakeMirror) MirrorTrade(ctx context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t.Id)
	return m.err
}

type fakeResolver struct {
	addr string
	err  error
}

func (r fakeResolver) DepositAddress(ctx context.Context, symbol, network string) (string, error) {
	return r.addr, r.err
}

type fixture struct {
	svc    *BrokerService
	store  *docstore.Service
	mirror *fakeMirror
	hub    *chat.Hub
	user   models.Principal
	admin  models.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := docstore.NewService(models.DocumentConfig{Path: dir + "/db.json", SessionPath: dir + "/session.json"})
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u, err := st.CreateUser(ctx, store.CreateUserParams{
		Email:        "user@example.com",
		PasswordHash: hash,
		FullName:     "Demo User",
		Balances: models.Balances{
			"BTC":  decimal.RequireFromString("0.5"),
			"USDT": decimal.NewFromInt(1000),
			"USD":  decimal.NewFromInt(5000),
		},
	})
	require.NoError(t, err)
	a, err := st.CreateUser(ctx, store.CreateUserParams{
		Email:        "admin@broker.com",
		PasswordHash: hash,
		FullName:     "Admin User",
		Role:         models.RoleAdmin,
	})
	require.NoError(t, err)

	hub := chat.NewHub(8, nil)
	t.Cleanup(hub.Close)
	mirror := &fakeMirror{}
	svc := NewBrokerService(Deps{
		Store:  st,
		Tokens: tokens,
		Prices: staticPrices{testSnapshot()},
		Hub:    hub,
		Mirror: mirror,
	})
	return &fixture{
		svc:    svc,
		store:  st,
		mirror: mirror,
		hub:    hub,
		user:   models.Principal{UserId: u.Id, Role: models.RoleUser},
		admin:  models.Principal{UserId: a.Id, Role: models.RoleAdmin},
	}
}

func (f *fixture) balance(t *testing.T, asset string) decimal.Decimal {
	t.Helper()
	b, err := f.store.GetBalances(context.Background(), f.user.UserId)
	require.NoError(t, err)
	return b.Get(asset)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func assertFailure[T any](t *testing.T, res *Result[T], err error, code Code, message string) {
	t.Helper()
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, message, res.Message)
	assert.Equal(t, code, CodeOf(err))
}

func TestRegisterLoginLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterRequest{Email: "New@Example.com", Password: "secret1", FullName: "New User"})
	require.NoError(t, err)
	assert.Equal(t, "Registration successful", res.Message)
	assert.Equal(t, "new@example.com", res.Record.Email)
	assert.Empty(t, res.Record.PasswordHash)
	assert.Equal(t, models.KycPending, res.Record.KycStatus)
	assert.True(t, res.Record.Balance.Get("BTC").IsZero())

	res, err = f.svc.Register(ctx, RegisterRequest{Email: "new@example.com", Password: "secret1", FullName: "Again"})
	assertFailure(t, res, err, CodeConflict, "Email already registered")

	login, err := f.svc.Login(ctx, "nobody@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, "User not found", login.Message)

	login, err = f.svc.Login(ctx, "new@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Incorrect password", login.Message)
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))

	login, err = f.svc.Login(ctx, "NEW@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Login successful", login.Message)
	require.NotEmpty(t, login.Token)

	p, err := f.svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, login.User.Id, p.UserId)
	assert.Equal(t, models.RoleUser, p.Role)

	require.NoError(t, f.svc.Logout(ctx, p))
	_, err = f.svc.Authenticate(ctx, login.Token)
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterRequest{Email: "a@b.co", Password: "123", FullName: "Short"})
	assertFailure(t, res, err, CodeValidation, "Password must be at least 6 characters long")

	res, err = f.svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "123456", FullName: "Bad"})
	assertFailure(t, res, err, CodeValidation, "Invalid email format")

	res, err = f.svc.Register(ctx, RegisterRequest{Email: "a@b.co", Password: "123456"})
	assertFailure(t, res, err, CodeValidation, "FullName is required")
}

func TestAuthenticate_RoleFollowsStoredUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	login, err := f.svc.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = f.svc.ToggleRole(ctx, f.admin, f.user.UserId)
	require.NoError(t, err)

	p, err := f.svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
}

func TestDepositWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := DepositRequest{Amount: decimal.RequireFromString("0.1"), Currency: "BTC", TxHash: validTxHash, ProofImage: "data:image/png;base64,AAAA"}

	low := req
	low.Amount = decimal.RequireFromString("0.0001")
	res, err := f.svc.CreateDeposit(ctx, f.user, low)
	assertFailure(t, res, err, CodeValidation, "Minimum amount is 0.001")

	badHash := req
	badHash.TxHash = "xyz"
	res, err = f.svc.CreateDeposit(ctx, f.user, badHash)
	assertFailure(t, res, err, CodeValidation, "Invalid transaction hash format")

	noProof := req
	noProof.ProofImage = ""
	res, err = f.svc.CreateDeposit(ctx, f.user, noProof)
	assertFailure(t, res, err, CodeValidation, "Please upload proof of payment")

	res, err = f.svc.CreateDeposit(ctx, models.Principal{}, req)
	assertFailure(t, res, err, CodeUnauthenticated, "Not authenticated")

	res, err = f.svc.CreateDeposit(ctx, f.user, req)
	require.NoError(t, err)
	assert.Equal(t, "Deposit request submitted successfully", res.Message)
	dep := res.Record
	assert.Equal(t, models.StatusPending, dep.Status)
	assert.Equal(t, "Demo User", dep.UserName)
	assert.Equal(t, "user@example.com", dep.UserEmail)
	assertDecimal(t, "0.5", f.balance(t, "BTC"))

	res, err = f.svc.ApproveDeposit(ctx, f.user, dep.Id, "")
	assertFailure(t, res, err, CodeForbidden, "Admin access required")

	res, err = f.svc.ApproveDeposit(ctx, f.admin, dep.Id, "looks good")
	require.NoError(t, err)
	assert.Equal(t, "Deposit approved successfully", res.Message)
	assert.Equal(t, models.StatusApproved, res.Record.Status)
	require.NotNil(t, res.Record.ApprovedAt)
	approvedAt := *res.Record.ApprovedAt
	assertDecimal(t, "0.6", f.balance(t, "BTC"))

	res, err = f.svc.ApproveDeposit(ctx, f.admin, dep.Id, "again")
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.False(t, res.Success)
	assertDecimal(t, "0.6", f.balance(t, "BTC"))

	stored, err := f.store.GetDeposit(ctx, dep.Id)
	require.NoError(t, err)
	assert.True(t, stored.ApprovedAt.Equal(approvedAt))
	assert.Equal(t, []string{dep.Id}, f.mirror.deposits)

	res, err = f.svc.RejectDeposit(ctx, f.admin, "missing", "")
	assertFailure(t, res, err, CodeNotFound, "Deposit not found")
}

func TestDepositReject_LeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateDeposit(ctx, f.user, DepositRequest{Amount: decimal.NewFromInt(50), Currency: "USDT", TxHash: validTxHash, ProofImage: "proof"})
	require.NoError(t, err)

	rej, err := f.svc.RejectDeposit(ctx, f.admin, res.Record.Id, "no funds received")
	require.NoError(t, err)
	assert.Equal(t, "Deposit rejected", rej.Message)
	assert.Equal(t, "no funds received", rej.Record.AdminNote)
	assertDecimal(t, "1000", f.balance(t, "USDT"))
	assert.Empty(t, f.mirror.deposits)
}

func TestMirrorFailureKeepsCommit(t *testing.T) {
	f := newFixture(t)
	f.mirror.err = errors.New("ledger down")
	ctx := context.Background()

	res, err := f.svc.CreateDeposit(ctx, f.user, DepositRequest{Amount: decimal.NewFromInt(20), Currency: "USDT", TxHash: validTxHash, ProofImage: "proof"})
	require.NoError(t, err)
	_, err = f.svc.ApproveDeposit(ctx, f.admin, res.Record.Id, "")
	require.NoError(t, err)
	assertDecimal(t, "1020", f.balance(t, "USDT"))
}

func TestWithdrawalWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"

	res, err := f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.1"), Currency: "BTC", WalletAddress: "0xnotbitcoin"})
	assertFailure(t, res, err, CodeValidation, "Invalid BTC wallet address format")

	res, err = f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.6"), Currency: "BTC", WalletAddress: addr})
	assertFailure(t, res, err, CodeInsufficientBalance, "Insufficient balance")

	res, err = f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.3"), Currency: "BTC", WalletAddress: addr})
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal request submitted successfully", res.Message)
	first := res.Record

	// The pending 0.3 is reserved, so another 0.3 no longer fits in 0.5.
	res, err = f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.3"), Currency: "BTC", WalletAddress: addr})
	assertFailure(t, res, err, CodeInsufficientBalance, "Insufficient balance")

	res, err = f.svc.ApproveWithdrawal(ctx, f.admin, first.Id, "")
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal approved successfully", res.Message)
	require.NotNil(t, res.Record.ProcessedAt)
	assertDecimal(t, "0.2", f.balance(t, "BTC"))
	assert.Equal(t, []string{first.Id}, f.mirror.withdrawals)

	res, err = f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.1"), Currency: "BTC", WalletAddress: addr})
	require.NoError(t, err)
	res, err = f.svc.RejectWithdrawal(ctx, f.admin, res.Record.Id, "")
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal rejected", res.Message)
	assertDecimal(t, "0.2", f.balance(t, "BTC"))
}

func TestTradeWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "BTC/USDT", Amount: decimal.RequireFromString("0.0001")})
	assertFailure(t, res, err, CodeValidation, "Minimum trade value is $10")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "BTC/USDT", Amount: decimal.NewFromInt(1)})
	assertFailure(t, res, err, CodeInsufficientBalance, "Insufficient balance")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "DOGE/USDT", Amount: decimal.NewFromInt(1)})
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.False(t, res.Success)

	for _, pair := range []string{"USD/USD", "USDT/USDT", "USDT/BTC", "USD/ETH"} {
		res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: pair, Amount: decimal.NewFromInt(20)})
		assertFailure(t, res, err, CodeValidation, "Unsupported trading pair "+pair)
	}
	trades, err := f.svc.ListTrades(ctx, f.admin, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: "hold", Pair: "BTC/USDT", Amount: decimal.NewFromInt(1)})
	assertFailure(t, res, err, CodeValidation, "Type must be one of: buy sell")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "btc/usdt", Amount: decimal.RequireFromString("0.01")})
	require.NoError(t, err)
	assert.Equal(t, "Trade request submitted successfully", res.Message)
	tr := res.Record
	assert.Equal(t, "BTC/USDT", tr.Pair)
	assert.Equal(t, models.MarketCrypto, tr.Market)
	assertDecimal(t, "45000", tr.Price)
	assertDecimal(t, "450", tr.Total)
	assertDecimal(t, "2.25", tr.Fee)

	res, err = f.svc.ExecuteTrade(ctx, f.admin, tr.Id, "")
	require.NoError(t, err)
	assert.Equal(t, "Trade executed successfully", res.Message)
	assert.Equal(t, models.StatusCompleted, res.Record.Status)
	assertDecimal(t, "0.51", f.balance(t, "BTC"))
	assertDecimal(t, "550", f.balance(t, "USDT"))
	assert.Equal(t, []string{tr.Id}, f.mirror.trades)

	res, err = f.svc.RejectTrade(ctx, f.admin, tr.Id, "")
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestTradeSellAndForex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeSell, Pair: "BTC/USD", Amount: decimal.RequireFromString("0.6")})
	assertFailure(t, res, err, CodeInsufficientBalance, "Insufficient balance")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "EUR/USD", Amount: decimal.NewFromInt(50)})
	assertFailure(t, res, err, CodeValidation, "Minimum trade value is $100")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeBuy, Pair: "EUR/USD", Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, models.MarketForex, res.Record.Market)
	assertDecimal(t, "110", res.Record.Total)

	res, err = f.svc.RejectTrade(ctx, f.admin, res.Record.Id, "market closed")
	require.NoError(t, err)
	assert.Equal(t, "Trade rejected", res.Message)
	assertDecimal(t, "5000", f.balance(t, "USD"))
}

func TestTradeRespectsPendingWithdrawals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.CreateWithdrawal(ctx, f.user, WithdrawalRequest{Amount: decimal.RequireFromString("0.3"), Currency: "BTC", WalletAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"})
	require.NoError(t, err)
	require.True(t, w.Success)

	res, err := f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeSell, Pair: "BTC/USDT", Amount: decimal.RequireFromString("0.3")})
	assertFailure(t, res, err, CodeInsufficientBalance, "Insufficient balance")

	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeSell, Pair: "BTC/USDT", Amount: decimal.RequireFromString("0.2")})
	require.NoError(t, err)
	assert.Equal(t, "Trade request submitted successfully", res.Message)

	_, err = f.svc.RejectWithdrawal(ctx, f.admin, w.Record.Id, "")
	require.NoError(t, err)
	res, err = f.svc.CreateTrade(ctx, f.user, TradeRequest{Type: models.TradeSell, Pair: "BTC/USDT", Amount: decimal.RequireFromString("0.3")})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.Register(ctx, RegisterRequest{Email: "other@example.com", Password: "secret1", FullName: "Other"})
	require.NoError(t, err)
	otherP := models.Principal{UserId: other.Record.Id, Role: models.RoleUser}

	for _, p := range []models.Principal{f.user, otherP} {
		_, err := f.svc.CreateDeposit(ctx, p, DepositRequest{Amount: decimal.NewFromInt(10), Currency: "USDT", TxHash: validTxHash, ProofImage: "proof"})
		require.NoError(t, err)
	}

	mine, err := f.svc.ListDeposits(ctx, f.user, store.RecordFilter{UserId: otherP.UserId})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.user.UserId, mine[0].UserId)

	all, err := f.svc.ListDeposits(ctx, f.admin, store.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := f.svc.ListDeposits(ctx, f.admin, store.RecordFilter{UserId: otherP.UserId, Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, otherP.UserId, filtered[0].UserId)

	_, err = f.svc.ListUsers(ctx, f.user)
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = f.svc.GetBalances(ctx, f.user, otherP.UserId)
	assert.Equal(t, CodeForbidden, CodeOf(err))
	b, err := f.svc.GetBalances(ctx, f.admin, otherP.UserId)
	require.NoError(t, err)
	assert.True(t, b.Get("USDT").IsZero())
}

func TestKycWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := KycSubmission{DocumentType: models.DocumentPassport, DocumentNumber: "P1234567", FrontImage: "front"}

	noFront := sub
	noFront.FrontImage = ""
	res, err := f.svc.SubmitKyc(ctx, f.user, noFront)
	assertFailure(t, res, err, CodeValidation, "Front image is required.")

	res, err = f.svc.SubmitKyc(ctx, f.user, sub)
	require.NoError(t, err)
	assert.Equal(t, "KYC submitted successfully", res.Message)
	id := res.Record.Id

	res, err = f.svc.SubmitKyc(ctx, f.user, sub)
	assertFailure(t, res, err, CodeConflict, "You already have a pending verification request.")

	res, err = f.svc.UpdateKycStatus(ctx, f.admin, id, true, "verified")
	require.NoError(t, err)
	assert.Equal(t, "KYC request approved", res.Message)

	u, err := f.svc.CurrentUser(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, models.KycApproved, u.KycStatus)

	res, err = f.svc.UpdateKycStatus(ctx, f.admin, "missing", false, "")
	assertFailure(t, res, err, CodeNotFound, "Request not found")
}

func TestUserAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ToggleRole(ctx, f.admin, f.admin.UserId)
	assertFailure(t, res, err, CodeForbidden, "You cannot change your own role")

	res, err = f.svc.UpdateUser(ctx, f.admin, f.user.UserId, UserUpdate{FullName: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "User updated successfully", res.Message)
	assert.Equal(t, "Renamed", res.Record.FullName)

	res, err = f.svc.UpdateUser(ctx, f.admin, f.user.UserId, UserUpdate{Role: "root"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	res, err = f.svc.UpdateUser(ctx, f.user, f.admin.UserId, UserUpdate{FullName: "x"})
	assertFailure(t, res, err, CodeForbidden, "Admin access required")

	users, err := f.svc.ListUsers(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.UpdateProfile(ctx, f.user, ProfileUpdate{NewPassword: "123"})
	assert.Equal(t, CodeValidation, CodeOf(err))

	res, err = f.svc.UpdateProfile(ctx, f.user, ProfileUpdate{FullName: "Demo Renamed", NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, "Profile updated successfully", res.Message)

	_, err = f.svc.Login(ctx, "user@example.com", "password123")
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))
	login, err := f.svc.Login(ctx, "user@example.com", "newsecret")
	require.NoError(t, err)
	assert.Equal(t, "Demo Renamed", login.User.FullName)
}

func TestChatMailbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adminSub, err := f.svc.Subscribe(f.admin)
	require.NoError(t, err)
	defer adminSub.Close()

	res, err := f.svc.SendMessage(ctx, f.user, "", "Hello support")
	require.NoError(t, err)
	assert.Equal(t, models.SenderUser, res.Record.Sender)

	select {
	case ev := <-adminSub.C:
		assert.Equal(t, chat.EventMessage, ev.Type)
		assert.Equal(t, f.user.UserId, ev.UserId)
	case <-time.After(time.Second):
		t.Fatal("admin subscriber did not receive the message")
	}

	_, err = f.svc.SendMessage(ctx, f.user, f.admin.UserId, "sneaky")
	assert.Equal(t, CodeForbidden, CodeOf(err))
	_, err = f.svc.SendMessage(ctx, f.user, "", "   ")
	assert.Equal(t, CodeValidation, CodeOf(err))

	convs, err := f.svc.Conversations(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "Hello support", convs[0].LastMessage)

	n, err := f.svc.UnreadCount(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.SendMessage(ctx, f.admin, f.user.UserId, "How can we help?")
	require.NoError(t, err)

	// The admin reading the mailbox flips only the user's message.
	n, err = f.svc.MarkAsRead(ctx, f.admin, f.user.UserId)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.UnreadCount(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := f.svc.Messages(ctx, f.user, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Read)
	assert.False(t, msgs[1].Read)

	_, err = f.svc.Conversations(ctx, f.user)
	assert.Equal(t, CodeForbidden, CodeOf(err))
}

func TestPortfolioAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pf, err := f.svc.Portfolio(ctx, f.user)
	require.NoError(t, err)
	// 0.5 BTC * 45000 + 1000 USDT + 5000 USD
	assertDecimal(t, "28500", pf.TotalUsd)
	assert.Equal(t, "BTC", pf.Lines[0].Asset)

	_, err = f.svc.CreateDeposit(ctx, f.user, DepositRequest{Amount: decimal.NewFromInt(10), Currency: "USDT", TxHash: validTxHash, ProofImage: "proof"})
	require.NoError(t, err)
	_, err = f.svc.SubmitKyc(ctx, f.user, KycSubmission{DocumentType: models.DocumentIdCard, DocumentNumber: "X1", FrontImage: "f"})
	require.NoError(t, err)

	stats, err := f.svc.DashboardStats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.PendingDeposits)
	assert.Equal(t, 1, stats.PendingKyc)

	userStats, err := f.svc.DashboardStats(ctx, f.user)
	require.NoError(t, err)
	assert.Zero(t, userStats.TotalUsers)
	assert.Equal(t, 1, userStats.PendingDeposits)
}

func TestDepositInstructions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.svc.DepositInstructions(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", in.Address)
	assert.Equal(t, "catalog", in.Source)

	f.svc.addresses = fakeResolver{addr: "bc1qcustody"}
	in, err = f.svc.DepositInstructions(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bc1qcustody", in.Address)
	assert.Equal(t, "custody", in.Source)

	f.svc.addresses = fakeResolver{err: errors.New("prime unavailable")}
	in, err = f.svc.DepositInstructions(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "catalog", in.Source)

	_, err = f.svc.DepositInstructions(ctx, "DOGE")
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestRetryConcurrent(t *testing.T) {
	calls := 0
	err := retryConcurrent(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return store.ErrConcurrentModification
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryConcurrent(context.Background(), "test", func() error {
		calls++
		return store.ErrConcurrentModification
	})
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.Equal(t, maxConcurrentRetries, calls)
}

func TestConcurrentApprovals_OneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateDeposit(ctx, f.user, DepositRequest{Amount: decimal.NewFromInt(100), Currency: "USDT", TxHash: validTxHash, ProofImage: "proof"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ApproveDeposit(ctx, f.admin, res.Record.Id, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assertDecimal(t, "1100", f.balance(t, "USDT"))
}
