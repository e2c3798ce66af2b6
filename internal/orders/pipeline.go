package orders

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"crypto-trading-panel/internal/market"
	"crypto-trading-panel/internal/metrics"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/service"

	"go.uber.org/zap"
)

// ErrUnknownSymbol 表示下单的 Symbol 不在资产注册表里
var ErrUnknownSymbol = errors.New("unknown symbol")

// ValidationError 表示请求体形状或取值非法，Reason 会原样返回给客户端
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// SubmitRequest 是下单请求体
type SubmitRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Qty      float64 `json:"qty"`
	ClientID string  `json:"clientId"`
}

// Pipeline 实现乐观下单管线：
// 校验 -> 立即返回 pending 记录 -> 固定延迟后按下单时捕获的价格成交
// 成交回调运行在请求周期之外，里面的错误只记日志（接受的尽力一致模型）
type Pipeline struct {
	store     *Store
	registry  *market.Registry
	ticks     chan<- model.TickMessage // 成交回灌行情的出口，可为 nil
	fillDelay time.Duration
	feedback  bool

	mu     sync.Mutex
	timers map[string]*time.Timer // ClientID -> 成交定时器，便于测试和停机时取消
	seq    int                    // 服务端订单编号计数
}

// NewPipeline 构造订单管线
// ticks 传 nil 时不回灌成交行情
func NewPipeline(store *Store, registry *market.Registry, ticks chan<- model.TickMessage,
	fillDelay time.Duration, feedback bool) *Pipeline {
	return &Pipeline{
		store:     store,
		registry:  registry,
		ticks:     ticks,
		fillDelay: fillDelay,
		feedback:  feedback,
		timers:    make(map[string]*time.Timer),
	}
}

// Submit 校验并接单
// 校验失败同步返回错误且不落任何记录；成功则立即返回 pending 订单，
// 并调度一次延迟成交
func (p *Pipeline) Submit(req SubmitRequest) (model.Order, error) {
	if req.Symbol == "" {
		return model.Order{}, &ValidationError{Reason: "Missing symbol"}
	}
	side := model.OrderSide(req.Side)
	if !side.Valid() {
		return model.Order{}, &ValidationError{Reason: "Invalid side"}
	}
	if req.Qty <= 0 || math.IsNaN(req.Qty) || math.IsInf(req.Qty, 0) {
		return model.Order{}, &ValidationError{Reason: "Invalid qty"}
	}

	asset, ok := p.registry.Get(req.Symbol)
	if !ok {
		return model.Order{}, ErrUnknownSymbol
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = service.NewClientID()
	}

	// 乐观记录：捕获当前价格，状态 pending，立即入库并返回
	pending := model.Order{
		ClientID: clientID,
		Symbol:   req.Symbol,
		Side:     side,
		Qty:      req.Qty,
		Price:    asset.Price,
		Status:   model.StatusPending,
		TS:       time.Now(),
	}
	p.store.Append(pending)
	metrics.OrdersSubmitted.WithLabelValues(string(model.StatusPending)).Inc()

	// 调度延迟成交，句柄留存以便取消
	p.mu.Lock()
	p.timers[clientID] = time.AfterFunc(p.fillDelay, func() {
		p.completeFill(pending)
	})
	p.mu.Unlock()

	service.Logger.Info("Order accepted",
		zap.String("ClientId", clientID), zap.String("Symbol", req.Symbol),
		zap.String("Side", req.Side), zap.Float64("Qty", req.Qty),
		zap.Float64("Price", pending.Price))

	return pending, nil
}

// completeFill 是延迟成交回调
// 成交价取下单时捕获的价格（无滑点的确定性成交），
// 按 ClientID 替换库里的乐观记录，找不到就追加（绝不丢单）
func (p *Pipeline) completeFill(pending model.Order) {
	p.mu.Lock()
	delete(p.timers, pending.ClientID)
	p.seq++
	serverID := fmt.Sprintf("order_%06d", p.seq)
	p.mu.Unlock()

	// 资产在成交前被移出注册表时把订单翻转为 rejected
	if _, ok := p.registry.Get(pending.Symbol); !ok {
		p.store.MarkError(pending.ClientID, "symbol no longer tradable")
		metrics.OrdersSubmitted.WithLabelValues(string(model.StatusRejected)).Inc()
		service.Logger.Warn("Fill aborted: symbol vanished",
			zap.String("ClientId", pending.ClientID), zap.String("Symbol", pending.Symbol))
		return
	}

	filled := pending
	filled.ID = serverID
	filled.Status = model.StatusFilled
	filled.FilledQty = pending.Qty
	filled.AvgPrice = pending.Price
	filled.TS = time.Now()

	p.store.ReplaceByClientID(pending.ClientID, filled)
	metrics.OrdersSubmitted.WithLabelValues(string(model.StatusFilled)).Inc()

	service.Logger.Info("Order filled",
		zap.String("OrderId", serverID), zap.String("ClientId", pending.ClientID),
		zap.Float64("AvgPrice", filled.AvgPrice), zap.Float64("FilledQty", filled.FilledQty))

	// 把成交作为一笔合成行情回灌：成交价改价，数量折算成交量
	if p.feedback {
		p.registry.ApplyTick(pending.Symbol, market.TickUpdate{
			Price:  filled.AvgPrice,
			Volume: filled.FilledQty,
			TS:     filled.TS,
		})
		if p.ticks != nil {
			if tick, ok := p.registry.TickMessageFor(pending.Symbol); ok {
				select {
				case p.ticks <- tick:
				default:
					// 缓冲写满就放弃，下一个模拟周期自然会覆盖
				}
			}
		}
	}
}

// PendingTimers 返回在途成交定时器数量
func (p *Pipeline) PendingTimers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

// Close 取消全部在途成交定时器（停机用）
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for clientID, timer := range p.timers {
		timer.Stop()
		delete(p.timers, clientID)
	}
}
