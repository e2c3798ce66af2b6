package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-panel/internal/api"
	"crypto-trading-panel/internal/auth"
	"crypto-trading-panel/internal/market"
	"crypto-trading-panel/internal/orders"
	"crypto-trading-panel/internal/service"
	"crypto-trading-panel/internal/ws"

	"go.uber.org/zap"
)

func main() {
	service.InitLogger()
	defer service.Logger.Sync()

	cfg := service.LoadConfig("config")

	// 1. 构造进程级单例状态：资产注册表、订单存储、WS 客户端注册表
	registry := market.NewRegistry(market.DefaultAssets(cfg.Market.HistoryMax), cfg.Market.HistoryMax)
	store := orders.NewStore(cfg.Order.MaxEntries)
	wsReg := ws.NewRegistry(cfg.WS.MaxClients)

	// 2. 广播器持有待发送缓冲，模拟器和订单管线都往同一个缓冲投递
	broadcaster := market.NewBroadcaster(wsReg, cfg.Market.FlushInterval, cfg.Market.PendingBuffer)
	simulator := market.NewSimulator(registry, broadcaster.Source(), cfg.Market.TickInterval)
	pipeline := orders.NewPipeline(store, registry, broadcaster.Source(),
		cfg.Order.FillDelay, cfg.Order.FeedbackTick)

	// 3. 鉴权协作方
	nonces := auth.NewNonceService(cfg.Auth.NonceTTL)
	users := auth.NewUserStore()
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpires)
	authH := auth.NewHandlers(nonces, users, tokens)

	server := api.NewServer(cfg, registry, wsReg, store, pipeline, authH)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 两个独立节奏的周期任务：模拟 Tick + 批量广播
	go simulator.Run(ctx)
	go broadcaster.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}

	go func() {
		service.Logger.Info("Server listening",
			zap.String("Addr", addr), zap.String("WSPath", cfg.Server.WSPath))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			service.Logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	service.Logger.Info("Shutting down...")

	// 取消在途的成交定时器，再优雅关闭 HTTP
	pipeline.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		service.Logger.Warn("HTTP shutdown error", zap.Error(err))
	}
}
