// Package storetest holds the behaviour every store.BrokerStore backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is registered by the factory.
type Factory func(t *testing.T) store.BrokerStore

// Run executes the shared suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.BrokerStore)
	}{
		{"UsersRoundTrip", testUsersRoundTrip},
		{"DuplicateEmail", testDuplicateEmail},
		{"UpdateUser", testUpdateUser},
		{"DepositApproveCreditsOnce", testDepositApproveCreditsOnce},
		{"DepositRejectLeavesBalance", testDepositRejectLeavesBalance},
		{"SettleMissingRecord", testSettleMissingRecord},
		{"WithdrawalInsufficientBalance", testWithdrawalInsufficientBalance},
		{"WithdrawalReservesBalance", testWithdrawalReservesBalance},
		{"WithdrawalApproveDebits", testWithdrawalApproveDebits},
		{"TradeExecuteMovesTwoLegs", testTradeExecuteMovesTwoLegs},
		{"TradeSellMovesTwoLegs", testTradeSellMovesTwoLegs},
		{"TradeOverdrawStaysPending", testTradeOverdrawStaysPending},
		{"KycSettleUpdatesUser", testKycSettleUpdatesUser},
		{"KycSinglePending", testKycSinglePending},
		{"ListFilters", testListFilters},
		{"ChatMailbox", testChatMailbox},
		{"RecordsRequireUser", testRecordsRequireUser},
		{"Sessions", testSessions},
		{"MovementsReconcile", testMovementsReconcile},
		{"ConcurrentApprovals", testConcurrentApprovals},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedUser(t *testing.T, st store.BrokerStore, email string, balances models.Balances) *models.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test " + email,
		Balances:     balances,
		CreatedAt:    t0,
	})
	require.NoError(t, err)
	return u
}

func newDeposit(u *models.User, amount, currency string, at time.Time) *models.Deposit {
	return &models.Deposit{
		Id:         uuid.New().String(),
		UserId:     u.Id,
		UserName:   u.FullName,
		UserEmail:  u.Email,
		Amount:     dec(amount),
		Currency:   currency,
		TxHash:     "0x" + "ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34",
		ProofImage: "data:image/png;base64,AAAA",
		Status:     models.StatusPending,
		CreatedAt:  at,
	}
}

func newWithdrawal(u *models.User, amount, currency string) *models.Withdrawal {
	return &models.Withdrawal{
		Id:            uuid.New().String(),
		UserId:        u.Id,
		UserName:      u.FullName,
		UserEmail:     u.Email,
		Amount:        dec(amount),
		Currency:      currency,
		WalletAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
		Status:        models.StatusPending,
		CreatedAt:     t0,
	}
}

func newTrade(u *models.User, typ models.TradeType, pair, amount, price string) *models.Trade {
	a, p := dec(amount), dec(price)
	total := a.Mul(p)
	return &models.Trade{
		Id:        uuid.New().String(),
		UserId:    u.Id,
		UserName:  u.FullName,
		UserEmail: u.Email,
		Type:      typ,
		Market:    models.MarketCrypto,
		Pair:      pair,
		Amount:    a,
		Price:     p,
		Total:     total,
		Fee:       total.Mul(dec("0.005")),
		Status:    models.StatusPending,
		CreatedAt: t0,
	}
}

func balance(t *testing.T, st store.BrokerStore, userId, asset string) decimal.Decimal {
	t.Helper()
	b, err := st.GetBalances(context.Background(), userId)
	require.NoError(t, err)
	return b.Get(asset)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func testUsersRoundTrip(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "Alice@Example.com", nil)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, models.KycPending, u.KycStatus)
	for _, a := range models.DefaultAssets {
		assertDec(t, "0", u.Balance.Get(a))
		_, ok := u.Balance[a]
		assert.Truef(t, ok, "asset %s should be seeded", a)
	}

	byEmail, err := st.GetUserByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.Id, byEmail.Id)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	_, err = st.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetUserById(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.Id, users[0].Id)
}

func testDuplicateEmail(t *testing.T, st store.BrokerStore) {
	seedUser(t, st, "dup@example.com", nil)
	_, err := st.CreateUser(context.Background(), store.CreateUserParams{Email: "DUP@example.com", PasswordHash: "x", FullName: "Dup"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func testUpdateUser(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "patch@example.com", nil)

	role := models.RoleAdmin
	name := "Renamed"
	updated, err := st.UpdateUser(ctx, u.Id, store.UserPatch{Role: &role, FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.Equal(t, "Renamed", updated.FullName)
	assert.Equal(t, "hash", updated.PasswordHash)

	_, err = st.UpdateUser(ctx, "missing", store.UserPatch{FullName: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDepositApproveCreditsOnce(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "dep@example.com", nil)
	d := newDeposit(u, "1000", "USDT", t0)
	require.NoError(t, st.InsertDeposit(ctx, d))

	got, err := st.GetDeposit(ctx, d.Id)
	require.NoError(t, err)
	assert.Equal(t, d.TxHash, got.TxHash)
	assert.Equal(t, d.ProofImage, got.ProofImage)
	assert.Nil(t, got.ApprovedAt)
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))

	approvedAt := t0.Add(time.Hour)
	settled, err := st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: true, AdminNote: "ok", At: approvedAt})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, settled.Status)
	assert.Equal(t, "ok", settled.AdminNote)
	require.NotNil(t, settled.ApprovedAt)
	assert.True(t, approvedAt.Equal(*settled.ApprovedAt))
	assertDec(t, "1000", balance(t, st, u.Id, "USDT"))

	_, err = st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: true, At: approvedAt.Add(time.Hour)})
	assert.ErrorIs(t, err, store.ErrNotPending)
	_, err = st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: false, At: approvedAt.Add(time.Hour)})
	assert.ErrorIs(t, err, store.ErrNotPending)

	again, err := st.GetDeposit(ctx, d.Id)
	require.NoError(t, err)
	assert.True(t, approvedAt.Equal(*again.ApprovedAt))
	assert.Equal(t, models.StatusApproved, again.Status)
	assertDec(t, "1000", balance(t, st, u.Id, "USDT"))
}

func testDepositRejectLeavesBalance(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "rej@example.com", nil)
	d := newDeposit(u, "0.5", "BTC", t0)
	require.NoError(t, st.InsertDeposit(ctx, d))

	settled, err := st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: false, AdminNote: "no proof", At: t0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, settled.Status)
	assert.NotNil(t, settled.ApprovedAt)
	assertDec(t, "0", balance(t, st, u.Id, "BTC"))
}

func testSettleMissingRecord(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	p := store.SettleParams{Id: "missing", Approve: true, At: t0}
	_, err := st.SettleDeposit(ctx, p)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.SettleWithdrawal(ctx, p)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.SettleTrade(ctx, p)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.SettleKycRequest(ctx, p)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testWithdrawalInsufficientBalance(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "poor@example.com", models.Balances{"BTC": dec("0.5")})

	err := st.InsertWithdrawal(ctx, newWithdrawal(u, "0.6", "BTC"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	list, err := st.ListWithdrawals(ctx, store.RecordFilter{UserId: u.Id})
	require.NoError(t, err)
	assert.Empty(t, list)
	assertDec(t, "0.5", balance(t, st, u.Id, "BTC"))
}

func testWithdrawalReservesBalance(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "reserve@example.com", models.Balances{"BTC": dec("0.5")})

	require.NoError(t, st.InsertWithdrawal(ctx, newWithdrawal(u, "0.3", "BTC")))
	err := st.InsertWithdrawal(ctx, newWithdrawal(u, "0.3", "BTC"))
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)
	require.NoError(t, st.InsertWithdrawal(ctx, newWithdrawal(u, "0.2", "BTC")))
}

func testWithdrawalApproveDebits(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "wd@example.com", models.Balances{"ETH": dec("2.0")})

	approve := newWithdrawal(u, "0.75", "ETH")
	reject := newWithdrawal(u, "0.25", "ETH")
	require.NoError(t, st.InsertWithdrawal(ctx, approve))
	require.NoError(t, st.InsertWithdrawal(ctx, reject))

	w, err := st.SettleWithdrawal(ctx, store.SettleParams{Id: approve.Id, Approve: true, At: t0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, w.Status)
	require.NotNil(t, w.ProcessedAt)
	assertDec(t, "1.25", balance(t, st, u.Id, "ETH"))

	w, err = st.SettleWithdrawal(ctx, store.SettleParams{Id: reject.Id, Approve: false, At: t0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, w.Status)
	assertDec(t, "1.25", balance(t, st, u.Id, "ETH"))
}

func testTradeExecuteMovesTwoLegs(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "buyer@example.com", models.Balances{"USDT": dec("1000"), "BTC": dec("0"), "ETH": dec("2")})

	tr := newTrade(u, models.TradeBuy, "BTC/USDT", "0.01", "45000")
	require.NoError(t, st.InsertTrade(ctx, tr))

	before, err := st.GetBalances(ctx, u.Id)
	require.NoError(t, err)

	done, err := st.SettleTrade(ctx, store.SettleParams{Id: tr.Id, Approve: true, At: t0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.ExecutedAt)

	after, err := st.GetBalances(ctx, u.Id)
	require.NoError(t, err)
	assertDec(t, "0.01", after.Get("BTC").Sub(before.Get("BTC")))
	assertDec(t, "-450", after.Get("USDT").Sub(before.Get("USDT")))
	assertDec(t, "0", after.Get("ETH").Sub(before.Get("ETH")))
}

func testTradeSellMovesTwoLegs(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "seller@example.com", models.Balances{"ETH": dec("2")})

	tr := newTrade(u, models.TradeSell, "ETH/USD", "1.5", "2500")
	require.NoError(t, st.InsertTrade(ctx, tr))
	_, err := st.SettleTrade(ctx, store.SettleParams{Id: tr.Id, Approve: true, At: t0})
	require.NoError(t, err)

	assertDec(t, "0.5", balance(t, st, u.Id, "ETH"))
	assertDec(t, "3750", balance(t, st, u.Id, "USD"))
}

func testTradeOverdrawStaysPending(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "broke@example.com", models.Balances{"USDT": dec("10")})

	tr := newTrade(u, models.TradeBuy, "BTC/USDT", "1", "45000")
	require.NoError(t, st.InsertTrade(ctx, tr))

	_, err := st.SettleTrade(ctx, store.SettleParams{Id: tr.Id, Approve: true, At: t0})
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)

	got, err := st.GetTrade(ctx, tr.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.ExecutedAt)
	assertDec(t, "10", balance(t, st, u.Id, "USDT"))
	assertDec(t, "0", balance(t, st, u.Id, "BTC"))

	rejected, err := st.SettleTrade(ctx, store.SettleParams{Id: tr.Id, Approve: false, At: t0})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
}

func newKyc(u *models.User) *models.KycRequest {
	return &models.KycRequest{
		Id:             uuid.New().String(),
		UserId:         u.Id,
		UserName:       u.FullName,
		UserEmail:      u.Email,
		DocumentType:   models.DocumentPassport,
		DocumentNumber: "P1234567",
		FrontImage:     "data:image/png;base64,AAAA",
		Status:         models.StatusPending,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func testKycSettleUpdatesUser(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	for _, approve := range []bool{true, false} {
		u := seedUser(t, st, uuid.New().String()+"@example.com", nil)
		k := newKyc(u)
		require.NoError(t, st.InsertKycRequest(ctx, k))

		settled, err := st.SettleKycRequest(ctx, store.SettleParams{Id: k.Id, Approve: approve, AdminNote: "checked", At: t0.Add(time.Minute)})
		require.NoError(t, err)

		user, err := st.GetUserById(ctx, u.Id)
		require.NoError(t, err)
		if approve {
			assert.Equal(t, models.StatusApproved, settled.Status)
			assert.Equal(t, models.KycApproved, user.KycStatus)
		} else {
			assert.Equal(t, models.StatusRejected, settled.Status)
			assert.Equal(t, models.KycRejected, user.KycStatus)
		}
		assert.True(t, t0.Add(time.Minute).Equal(settled.UpdatedAt))

		_, err = st.SettleKycRequest(ctx, store.SettleParams{Id: k.Id, Approve: !approve, At: t0})
		assert.ErrorIs(t, err, store.ErrNotPending)
	}
}

func testKycSinglePending(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "kyc@example.com", nil)
	first := newKyc(u)
	require.NoError(t, st.InsertKycRequest(ctx, first))
	assert.ErrorIs(t, st.InsertKycRequest(ctx, newKyc(u)), store.ErrPendingKycExists)

	_, err := st.SettleKycRequest(ctx, store.SettleParams{Id: first.Id, Approve: false, At: t0})
	require.NoError(t, err)
	require.NoError(t, st.InsertKycRequest(ctx, newKyc(u)))
}

func testListFilters(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	a := seedUser(t, st, "a@example.com", nil)
	b := seedUser(t, st, "b@example.com", nil)

	var ids []string
	for i := 0; i < 3; i++ {
		d := newDeposit(a, "10", "USDT", t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.InsertDeposit(ctx, d))
		ids = append(ids, d.Id)
	}
	require.NoError(t, st.InsertDeposit(ctx, newDeposit(b, "20", "USDT", t0)))
	_, err := st.SettleDeposit(ctx, store.SettleParams{Id: ids[0], Approve: true, At: t0})
	require.NoError(t, err)

	all, err := st.ListDeposits(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	own, err := st.ListDeposits(ctx, store.RecordFilter{UserId: a.Id})
	require.NoError(t, err)
	require.Len(t, own, 3)
	assert.Equal(t, ids[2], own[0].Id, "newest first")

	pending, err := st.ListDeposits(ctx, store.RecordFilter{UserId: a.Id, Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	page, err := st.ListDeposits(ctx, store.RecordFilter{UserId: a.Id, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].Id)
}

func testRecordsRequireUser(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	ghost := &models.User{Id: uuid.New().String(), Email: "ghost@example.com", FullName: "Ghost"}

	assert.ErrorIs(t, st.InsertDeposit(ctx, newDeposit(ghost, "1", "BTC", t0)), store.ErrNotFound)
	assert.ErrorIs(t, st.InsertWithdrawal(ctx, newWithdrawal(ghost, "1", "BTC")), store.ErrNotFound)
	assert.ErrorIs(t, st.InsertTrade(ctx, newTrade(ghost, models.TradeBuy, "BTC/USDT", "1", "100")), store.ErrNotFound)
	assert.ErrorIs(t, st.InsertKycRequest(ctx, newKyc(ghost)), store.ErrNotFound)
	assert.ErrorIs(t, st.AppendMessage(ctx, &models.ChatMessage{
		Id: uuid.New().String(), UserId: ghost.Id, Sender: models.SenderUser, Text: "hello", Timestamp: t0,
	}), store.ErrNotFound)

	deposits, err := st.ListDeposits(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, deposits)
	withdrawals, err := st.ListWithdrawals(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
	trades, err := st.ListTrades(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
	kyc, err := st.ListKycRequests(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, kyc)
	msgs, err := st.ListMessages(ctx, ghost.Id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testChatMailbox(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	a := seedUser(t, st, "chat-a@example.com", nil)
	b := seedUser(t, st, "chat-b@example.com", nil)

	post := func(userId string, sender models.Sender, text string, at time.Time) {
		require.NoError(t, st.AppendMessage(ctx, &models.ChatMessage{
			Id: uuid.New().String(), UserId: userId, Sender: sender, Text: text, Timestamp: at,
		}))
	}
	post(a.Id, models.SenderUser, "hello", t0)
	post(a.Id, models.SenderUser, "anyone?", t0.Add(time.Minute))
	post(b.Id, models.SenderUser, "hi", t0.Add(2*time.Minute))
	post(a.Id, models.SenderAdmin, "yes", t0.Add(3*time.Minute))

	msgs, err := st.ListMessages(ctx, a.Id)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "yes", msgs[2].Text)

	convs, err := st.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, a.Id, convs[0].UserId)
	assert.Equal(t, "yes", convs[0].LastMessage)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, a.Email, convs[0].UserEmail)
	assert.Equal(t, 1, convs[1].UnreadCount)

	n, err := st.CountUnread(ctx, "", models.SenderUser)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	marked, err := st.MarkRead(ctx, a.Id, models.SenderAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	n, err = st.CountUnread(ctx, a.Id, models.SenderUser)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = st.CountUnread(ctx, a.Id, models.SenderAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "admin message stays unread until the user reads it")

	_, err = st.MarkRead(ctx, a.Id, models.SenderUser)
	require.NoError(t, err)
	n, err = st.CountUnread(ctx, a.Id, models.SenderAdmin)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testSessions(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	s := &models.Session{Id: uuid.New().String(), UserId: "u1", Role: models.RoleAdmin, IssuedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	require.NoError(t, st.SaveSession(ctx, s))

	got, err := st.GetSession(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, st.DeleteSession(ctx, s.Id))
	_, err = st.GetSession(ctx, s.Id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testMovementsReconcile(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "ledger@example.com", models.Balances{"BTC": dec("0.5"), "USDT": dec("1000")})

	d := newDeposit(u, "0.25", "BTC", t0)
	require.NoError(t, st.InsertDeposit(ctx, d))
	_, err := st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: true, At: t0})
	require.NoError(t, err)

	w := newWithdrawal(u, "0.1", "BTC")
	require.NoError(t, st.InsertWithdrawal(ctx, w))
	_, err = st.SettleWithdrawal(ctx, store.SettleParams{Id: w.Id, Approve: true, At: t0})
	require.NoError(t, err)

	tr := newTrade(u, models.TradeSell, "BTC/USDT", "0.05", "40000")
	require.NoError(t, st.InsertTrade(ctx, tr))
	_, err = st.SettleTrade(ctx, store.SettleParams{Id: tr.Id, Approve: true, At: t0})
	require.NoError(t, err)

	assertDec(t, "0.6", balance(t, st, u.Id, "BTC"))
	assertDec(t, "3000", balance(t, st, u.Id, "USDT"))
	require.NoError(t, st.ReconcileUserBalance(ctx, u.Id, "BTC"))
	require.NoError(t, st.ReconcileUserBalance(ctx, u.Id, "USDT"))

	moves, err := st.ListMovements(ctx, u.Id, "BTC", 0, 0)
	require.NoError(t, err)
	require.Len(t, moves, 4)
	assert.Equal(t, models.MovementTrade, moves[0].Kind, "newest first")
	assertDec(t, "-0.05", moves[0].Amount)
	assertDec(t, "0.65", moves[0].BalanceBefore)
	assertDec(t, "0.6", moves[0].BalanceAfter)
	assert.Equal(t, models.MovementOpening, moves[3].Kind)

	paged, err := st.ListMovements(ctx, u.Id, "", 2, 0)
	require.NoError(t, err)
	assert.Len(t, paged, 2)
}

func testConcurrentApprovals(t *testing.T, st store.BrokerStore) {
	ctx := context.Background()
	u := seedUser(t, st, "race@example.com", nil)
	d := newDeposit(u, "5", "USDT", t0)
	require.NoError(t, st.InsertDeposit(ctx, d))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.SettleDeposit(ctx, store.SettleParams{Id: d.Id, Approve: true, At: t0})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, notPending := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrNotPending):
			notPending++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, notPending)
	assertDec(t, "5", balance(t, st, u.Id, "USDT"))
}
