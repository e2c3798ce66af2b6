// Package api 暴露面板的 HTTP 路由和 WebSocket 行情入口
package api

import (
	"errors"
	"net/http"
	"time"

	"crypto-trading-panel/internal/auth"
	"crypto-trading-panel/internal/market"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/orders"
	"crypto-trading-panel/internal/service"
	wsreg "crypto-trading-panel/internal/ws"
	"crypto-trading-panel/pkg/ta"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server 组装 gin 路由、鉴权中间件和 WebSocket 升级
type Server struct {
	cfg      *service.Config
	registry *market.Registry
	wsReg    *wsreg.Registry
	store    *orders.Store
	pipeline *orders.Pipeline
	authH    *auth.Handlers
	tokens   *auth.TokenIssuer
	calc     *ta.Calculator
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer 构造并挂载全部路由
func NewServer(cfg *service.Config, registry *market.Registry, wsReg *wsreg.Registry,
	store *orders.Store, pipeline *orders.Pipeline, authH *auth.Handlers) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		wsReg:    wsReg,
		store:    store,
		pipeline: pipeline,
		authH:    authH,
		tokens:   authH.Tokens,
		calc:     ta.NewCalculator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.Server.CORSOrigin},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET(cfg.Server.WSPath, s.handleTicker)

	s.authH.RegisterRoutes(router.Group("/auth"))

	protected := router.Group("/", BearerAuth(cfg.Auth.BearerToken, s.tokens))
	protected.GET("/assets", s.handleAssets)
	protected.GET("/assets/:symbol/stats", s.handleAssetStats)
	protected.POST("/orders", s.handleSubmitOrder)
	protected.GET("/orders", s.handleListOrders)

	s.router = router
	return s
}

// Router 暴露底层 gin 引擎（测试用）
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler 实现 http.Handler 接入
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": time.Now()})
}

// handleAssets 返回全部资产快照（深拷贝，历史缓冲不随行）
func (s *Server) handleAssets(c *gin.Context) {
	assets := s.registry.List()
	for i := range assets {
		assets[i].History = nil // 列表接口不带 600 点历史
	}
	c.JSON(http.StatusOK, assets)
}

// handleAssetStats 返回单个资产的 24h 统计和技术指标
func (s *Server) handleAssetStats(c *gin.Context) {
	symbol := c.Param("symbol")
	asset, ok := s.registry.Get(symbol)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid symbol"})
		return
	}

	indicators, err := s.calc.Summarize(asset.History)
	resp := gin.H{
		"symbol":       asset.Symbol,
		"price":        asset.Price,
		"open24h":      asset.Open24h,
		"high24h":      asset.High24h,
		"low24h":       asset.Low24h,
		"volume24h":    asset.Volume24h,
		"change24hPct": asset.Change24h,
		"lastUpdated":  asset.LastUpdated,
	}
	if err == nil {
		resp["sma20"] = indicators.SMA
		resp["rsi14"] = indicators.RSI
	}
	c.JSON(http.StatusOK, resp)
}

// handleSubmitOrder 处理 POST /orders
// 校验失败 400，未知 Symbol 400，成功 201 返回乐观 pending 记录
func (s *Server) handleSubmitOrder(c *gin.Context) {
	var req orders.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid body"})
		return
	}

	order, err := s.pipeline.Submit(req)
	if err != nil {
		var vErr *orders.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"message": vErr.Reason})
		case errors.Is(err, orders.ErrUnknownSymbol):
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid symbol"})
		default:
			service.Logger.Error("Order submit failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		}
		return
	}
	c.JSON(http.StatusCreated, order)
}

// handleListOrders 处理 GET /orders?limit=&status=
func (s *Server) handleListOrders(c *gin.Context) {
	limit := s.cfg.Order.QueryLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := service.StringToInt(raw); err == nil && v > 0 {
			limit = v
		}
	}
	opts := orders.QueryOpts{Limit: limit}
	if status := c.Query("status"); status != "" {
		opts.Status = model.OrderStatus(status)
	}
	c.JSON(http.StatusOK, s.store.Query(opts))
}

// subscribeOp 是客户端在 WS 上发送的订阅控制消息
type subscribeOp struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// handleTicker 处理 GET /ws/ticker?token= 的升级
// token 非法时 401，连接绝不升级；升级成功后先发全量快照，再由广播器推批次
func (s *Server) handleTicker(c *gin.Context) {
	token := c.Query("token")
	if !tokenIsValid(token, s.cfg.Auth.BearerToken, s.tokens) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		service.Logger.Warn("WS upgrade failed", zap.Error(err))
		return
	}

	clientID, err := s.wsReg.Register(conn, true)
	if err != nil {
		// 注册失败（达到上限）由调用方关闭连接
		service.Logger.Warn("WS register failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	// 升级成功立即下发覆盖全部资产的快照
	snapshot := model.SnapshotMessage{Type: "snapshot", Data: s.registry.SnapshotTicks()}
	if !s.wsReg.SendTo(clientID, snapshot) {
		return
	}

	// 读循环：处理订阅控制消息，连接断开时注销会话
	go s.readLoop(clientID, conn)
}

func (s *Server) readLoop(clientID string, conn *websocket.Conn) {
	defer s.wsReg.Remove(clientID)

	for {
		var op subscribeOp
		if err := conn.ReadJSON(&op); err != nil {
			return
		}
		if op.Op == "subscribe" {
			s.wsReg.Subscribe(clientID, op.Symbols)
			service.Logger.Info("WS subscription updated",
				zap.String("ClientId", clientID), zap.Strings("Symbols", op.Symbols))
		}
	}
}
