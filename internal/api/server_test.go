package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"crypto-trading-panel/internal/auth"
	"crypto-trading-panel/internal/market"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/orders"
	"crypto-trading-panel/internal/service"
	wsreg "crypto-trading-panel/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	service.InitLogger()
	os.Exit(m.Run())
}

type testEnv struct {
	cfg         *service.Config
	srv         *httptest.Server
	registry    *market.Registry
	wsRegistry  *wsreg.Registry
	store       *orders.Store
	pipeline    *orders.Pipeline
	broadcaster *market.Broadcaster
	simulator   *market.Simulator
	tokens      *auth.TokenIssuer
}

// newTestEnv 组装完整的面板栈，simulate=true 时启动模拟和广播循环
func newTestEnv(t *testing.T, simulate bool) *testEnv {
	t.Helper()

	cfg := &service.Config{
		Server: service.ServerConfig{Port: 0, WSPath: "/ws/ticker", CORSOrigin: "http://localhost:5173"},
		Auth:   service.AuthConfig{BearerToken: "demo", JWTSecret: "test-secret", JWTExpires: time.Hour, NonceTTL: 5 * time.Minute},
		Market: service.MarketConfig{TickInterval: 20 * time.Millisecond, FlushInterval: 30 * time.Millisecond, HistoryMax: 600, PendingBuffer: 2048},
		Order:  service.OrderConfig{FillDelay: 30 * time.Millisecond, MaxEntries: 1000, QueryLimit: 200, FeedbackTick: true},
		WS:     service.WSConfig{MaxClients: 16},
	}

	registry := market.NewRegistry(market.DefaultAssets(cfg.Market.HistoryMax), cfg.Market.HistoryMax)
	store := orders.NewStore(cfg.Order.MaxEntries)
	wsRegistry := wsreg.NewRegistry(cfg.WS.MaxClients)
	broadcaster := market.NewBroadcaster(wsRegistry, cfg.Market.FlushInterval, cfg.Market.PendingBuffer)
	simulator := market.NewSimulator(registry, broadcaster.Source(), cfg.Market.TickInterval)
	pipeline := orders.NewPipeline(store, registry, broadcaster.Source(), cfg.Order.FillDelay, cfg.Order.FeedbackTick)
	t.Cleanup(pipeline.Close)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpires)
	authH := auth.NewHandlers(auth.NewNonceService(cfg.Auth.NonceTTL), auth.NewUserStore(), tokens)

	server := NewServer(cfg, registry, wsRegistry, store, pipeline, authH)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	if simulate {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go simulator.Run(ctx)
		go broadcaster.Run(ctx)
	}

	return &testEnv{
		cfg: cfg, srv: srv, registry: registry, wsRegistry: wsRegistry,
		store: store, pipeline: pipeline, broadcaster: broadcaster,
		simulator: simulator, tokens: tokens,
	}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.request(t, http.MethodGet, "/health", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrdersRequireBearerToken(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, "/orders", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/orders", "wrong-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/orders", "",
		orders.SubmitRequest{Symbol: "BTC", Side: "buy", Qty: 1})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTAcceptedAsBearer(t *testing.T) {
	env := newTestEnv(t, false)

	token, err := env.tokens.Sign(map[string]interface{}{"userId": "user_000001"})
	require.NoError(t, err)

	resp := env.request(t, http.MethodGet, "/assets", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListAssets(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, "/assets", "demo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assets := decodeJSON[[]model.Asset](t, resp)
	require.Len(t, assets, 10)
	// 列表接口不携带 600 点历史
	assert.Empty(t, assets[0].History)
}

func TestAssetStats(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodGet, "/assets/BTC/stats", "demo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeJSON[map[string]interface{}](t, resp)
	assert.Equal(t, "BTC", stats["symbol"])
	assert.Contains(t, stats, "sma20")
	assert.Contains(t, stats, "rsi14")

	resp = env.request(t, http.MethodGet, "/assets/NOPE/stats", "demo", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitOrderValidation(t *testing.T) {
	env := newTestEnv(t, false)

	cases := []orders.SubmitRequest{
		{Symbol: "BTC", Side: "hold", Qty: 1},
		{Symbol: "BTC", Side: "buy", Qty: 0},
		{Symbol: "BTC", Side: "buy", Qty: -1},
		{Symbol: "NOPE", Side: "buy", Qty: 1},
		{Side: "buy", Qty: 1},
	}
	for _, req := range cases {
		resp := env.request(t, http.MethodPost, "/orders", "demo", req)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "request: %+v", req)
	}

	// 校验失败不落任何记录
	assert.Equal(t, 0, env.store.Len())
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.request(t, http.MethodPost, "/orders", "demo",
		orders.SubmitRequest{Symbol: "BTC", Side: "buy", Qty: 0.5, ClientID: "e2e_1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pending := decodeJSON[model.Order](t, resp)

	assert.Equal(t, model.StatusPending, pending.Status)
	assert.Equal(t, "e2e_1", pending.ClientID)
	assert.Equal(t, 0.5, pending.Qty)
	assert.Greater(t, pending.Price, 0.0)

	// 成交延迟过后，同一 ClientID 变为 filled 且没有重复记录
	require.Eventually(t, func() bool {
		resp := env.request(t, http.MethodGet, "/orders", "demo", nil)
		list := decodeJSON[[]model.Order](t, resp)
		matched := 0
		var last model.Order
		for _, o := range list {
			if o.ClientID == "e2e_1" {
				matched++
				last = o
			}
		}
		return matched == 1 && last.Status == model.StatusFilled
	}, 2*time.Second, 20*time.Millisecond)

	resp = env.request(t, http.MethodGet, "/orders?status=filled", "demo", nil)
	list := decodeJSON[[]model.Order](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, pending.Price, list[0].AvgPrice)
	assert.Equal(t, 0.5, list[0].FilledQty)
}

func wsURL(srvURL, path, token string) string {
	return "ws" + strings.TrimPrefix(srvURL, "http") + path + "?token=" + token
}

func TestWSRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, false)

	for _, token := range []string{"", "bad-token"} {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/ticker", token), nil)
		require.Error(t, err)
		require.Nil(t, conn)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Equal(t, 0, env.wsRegistry.Count())
}

func TestWSSnapshotOnConnect(t *testing.T) {
	env := newTestEnv(t, false)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/ticker", "demo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot model.SnapshotMessage
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, "snapshot", snapshot.Type)
	require.Len(t, snapshot.Data, 10)
	for _, tick := range snapshot.Data {
		assert.Equal(t, "tick", tick.Type)
		assert.Greater(t, tick.Price, 0.0)
	}
}

func TestWSReceivesCoalescedBatches(t *testing.T) {
	env := newTestEnv(t, true)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/ticker", "demo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// 第一条是快照，随后是模拟器驱动的批次
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot model.SnapshotMessage
	require.NoError(t, conn.ReadJSON(&snapshot))

	var batch []model.TickMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&batch))
	require.NotEmpty(t, batch)

	// 批次内同一 Symbol 最多出现一次（合并后）
	seen := make(map[string]struct{})
	for _, tick := range batch {
		_, dup := seen[tick.Symbol]
		assert.False(t, dup, "symbol %s appeared twice in one batch", tick.Symbol)
		seen[tick.Symbol] = struct{}{}
	}
}

func TestWSSubscriptionFiltering(t *testing.T) {
	env := newTestEnv(t, true)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.srv.URL, "/ws/ticker", "demo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot model.SnapshotMessage
	require.NoError(t, conn.ReadJSON(&snapshot))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"op": "subscribe", "symbols": []string{"BTC"},
	}))

	// 订阅生效前可能还有在途的未过滤批次，过了缓冲期之后必须只剩 BTC
	cutoff := time.Now().Add(500 * time.Millisecond)
	checked := 0
	for checked < 3 {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var batch []model.TickMessage
		require.NoError(t, conn.ReadJSON(&batch))
		if time.Now().Before(cutoff) {
			continue
		}
		require.NotEmpty(t, batch)
		for _, tick := range batch {
			assert.Equal(t, "BTC", tick.Symbol)
		}
		checked++
	}
}
