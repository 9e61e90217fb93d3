package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	broker "brokerdesk-go/internal/api"
	"brokerdesk-go/internal/auth"
	"brokerdesk-go/internal/chat"
	"brokerdesk-go/internal/docstore"
	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"
	"brokerdesk-go/internal/store"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct{}

func (fakeMarket) Snapshot() models.PriceSnapshot {
	return models.PriceSnapshot{
		Crypto: map[string]models.CryptoQuote{
			"BTC":  {Symbol: "BTC", Usd: decimal.NewFromInt(45000)},
			"USDT": {Symbol: "USDT", Usd: decimal.NewFromInt(1)},
			"ETH":  {Symbol: "ETH", Usd: decimal.NewFromInt(2500)},
		},
		Forex: map[string]models.ForexQuote{
			"EUR/USD": {Pair: "EUR/USD", Rate: decimal.RequireFromString("1.1")},
		},
	}
}

func (fakeMarket) Chart(ctx context.Context, coinId string, days int) ([]models.ChartPoint, error) {
	return []models.ChartPoint{{Time: time.Unix(1700000000, 0).UTC(), Price: decimal.NewFromInt(45000)}}, nil
}

type testEnv struct {
	handler    http.Handler
	svc        *broker.BrokerService
	userToken  string
	adminToken string
	otherToken string
}

func newTestEnv(t *testing.T, m *metrics.Metrics) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := docstore.NewService(models.DocumentConfig{Path: dir + "/db.json", SessionPath: dir + "/session.json"})
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer("server-test-secret", time.Hour)
	require.NoError(t, err)
	hub := chat.NewHub(8, nil)
	t.Cleanup(hub.Close)

	svc := broker.NewBrokerService(broker.Deps{Store: st, Tokens: tokens, Prices: fakeMarket{}, Hub: hub})

	ctx := context.Background()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	seed := []store.CreateUserParams{
		{Email: "user@example.com", FullName: "Demo User", Balances: models.Balances{"USDT": decimal.NewFromInt(1000)}},
		{Email: "admin@broker.com", FullName: "Admin User", Role: models.RoleAdmin},
		{Email: "other@example.com", FullName: "Other User"},
	}
	tokensOut := make([]string, len(seed))
	for i, params := range seed {
		params.PasswordHash = hash
		_, err := st.CreateUser(ctx, params)
		require.NoError(t, err)
		login, err := svc.Login(ctx, params.Email, "password123")
		require.NoError(t, err)
		tokensOut[i] = login.Token
	}

	return &testEnv{
		handler:    NewServer(Options{Service: svc, Market: fakeMarket{}, Metrics: m}),
		svc:        svc,
		userToken:  tokensOut[0],
		adminToken: tokensOut[1],
		otherToken: tokensOut[2],
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoErrorf(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type depositResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Record  models.Deposit `json:"record"`
}

const txHash = "0x8f3a2b1c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"

func depositBody(amount string) map[string]any {
	return map[string]any{"amount": amount, "currency": "USDT", "txHash": txHash, "proofImage": "data:image/png;base64,AAAA"}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "fresh@example.com", "password": "secret1", "fullName": "Fresh User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Registration successful", decode[actionResult](t, w).Message)

	w = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "fresh@example.com", "password": "secret1", "fullName": "Fresh User",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already registered", decode[problem](t, w).Detail)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "fresh@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect password", decode[problem](t, w).Detail)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "fresh@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[models.LoginResult](t, w)
	require.NotEmpty(t, login.Token)

	w = env.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.User](t, w)
	assert.Equal(t, "fresh@example.com", me.Email)
	assert.Empty(t, me.PasswordHash)

	w = env.do(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/api/v1/me", "/api/v1/deposits", "/api/v1/balances", "/api/v1/chat/unread"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		assert.Equalf(t, http.StatusUnauthorized, w.Code, path)
		w = env.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equalf(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestDepositRoleGating(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/deposits", env.userToken, depositBody("5"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Minimum amount is 10", decode[problem](t, w).Detail)

	w = env.do(t, http.MethodPost, "/api/v1/deposits", env.userToken, depositBody("100"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dep := decode[depositResult](t, w)
	assert.Equal(t, "Deposit request submitted successfully", dep.Message)

	w = env.do(t, http.MethodPost, "/api/v1/deposits", env.otherToken, depositBody("50"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/deposits/"+dep.Record.Id+"/approve", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", decode[problem](t, w).Detail)

	w = env.do(t, http.MethodGet, "/api/v1/deposits", env.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	own := decode[[]models.Deposit](t, w)
	require.Len(t, own, 1)
	assert.Equal(t, dep.Record.Id, own[0].Id)

	w = env.do(t, http.MethodGet, "/api/v1/deposits?status=pending", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Deposit](t, w), 2)

	w = env.do(t, http.MethodPost, "/api/v1/deposits/"+dep.Record.Id+"/approve", env.adminToken, map[string]string{"note": "received"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[depositResult](t, w)
	assert.Equal(t, "Deposit approved successfully", approved.Message)
	assert.Equal(t, models.StatusApproved, approved.Record.Status)
	assert.Equal(t, "received", approved.Record.AdminNote)

	w = env.do(t, http.MethodPost, "/api/v1/deposits/"+dep.Record.Id+"/approve", env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/balances", env.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	balances := decode[models.Balances](t, w)
	assert.True(t, decimal.NewFromInt(1100).Equal(balances.Get("USDT")))

	w = env.do(t, http.MethodPost, "/api/v1/deposits/missing/reject", env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTradeQuoteAndInsufficientBalance(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/trades/quote?pair=BTC/USDT&amount=0.01&type=buy", env.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decode[models.TradeValue](t, w)
	assert.True(t, decimal.NewFromInt(450).Equal(quote.Total))
	assert.True(t, decimal.RequireFromString("2.25").Equal(quote.Fee))

	w = env.do(t, http.MethodPost, "/api/v1/trades", env.userToken, map[string]string{"type": "buy", "pair": "BTC/USDT", "amount": "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Insufficient balance", decode[problem](t, w).Detail)

	w = env.do(t, http.MethodPost, "/api/v1/trades", env.userToken, map[string]string{"type": "buy", "pair": "BTC/USDT", "amount": "0.01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAdminOnlyEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/users", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 3)

	w = env.do(t, http.MethodGet, "/api/v1/dashboard", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[models.DashboardStats](t, w).TotalUsers)
}

func TestPriceEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/prices/crypto", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quotes := decode[[]models.CryptoQuote](t, w)
	require.Len(t, quotes, 3)
	assert.Equal(t, "BTC", quotes[0].Symbol)

	w = env.do(t, http.MethodGet, "/api/v1/prices/forex", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ForexQuote](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/v1/prices/chart/bitcoin?days=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ChartPoint](t, w), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, metrics.Registry("brokerdesk_server_test"))
	env.do(t, http.MethodGet, "/healthz", "", nil)

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestChatSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	adminConn, _, err := websocket.DefaultDialer.Dial(wsURL+env.adminToken, nil)
	require.NoError(t, err)
	defer adminConn.Close()
	userConn, _, err := websocket.DefaultDialer.Dial(wsURL+env.userToken, nil)
	require.NoError(t, err)
	defer userConn.Close()

	require.NoError(t, userConn.WriteJSON(map[string]string{"type": "send", "text": "Where is my deposit?"}))

	// The sender gets an ack and the pushed event, in either order.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		_ = userConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame map[string]any
		require.NoError(t, userConn.ReadJSON(&frame))
		seen[frame["type"].(string)] = true
		if frame["type"] == "ack" {
			assert.Equal(t, true, frame["success"])
			assert.Equal(t, "Message sent", frame["message"])
		}
	}
	assert.True(t, seen["ack"])
	assert.True(t, seen[string(chat.EventMessage)])

	_ = adminConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev chat.Event
	require.NoError(t, adminConn.ReadJSON(&ev))
	assert.Equal(t, chat.EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "Where is my deposit?", ev.Message.Text)

	require.NoError(t, userConn.WriteJSON(map[string]string{"type": "bogus"}))
	_ = userConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack socketReply
	require.NoError(t, userConn.ReadJSON(&ack))
	assert.Equal(t, "ack", ack.Type)
	assert.False(t, ack.Success)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}
