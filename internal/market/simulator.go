package market

import (
	"context"
	"math/rand"
	"time"

	"crypto-trading-panel/internal/metrics"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/service"

	"go.uber.org/zap"
)

// Simulator 是周期性的行情模拟器
// 每个周期加权抽取约四分之一的 Symbol 做有界随机游走，并把结果推到待广播缓冲
type Simulator struct {
	registry *Registry
	out      chan<- model.TickMessage
	interval time.Duration
	rng      *rand.Rand
}

// NewSimulator 构造模拟器，out 是广播器的待发送缓冲
func NewSimulator(registry *Registry, out chan<- model.TickMessage, interval time.Duration) *Simulator {
	return &Simulator{
		registry: registry,
		out:      out,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run 启动模拟循环，ctx 取消后退出
func (s *Simulator) Run(ctx context.Context) {
	service.Logger.Info("Tick simulator started",
		zap.Duration("Interval", s.interval), zap.Int("Assets", s.registry.Count()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			service.Logger.Info("Tick simulator stopped")
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step 执行一个模拟周期：抽样 -> 随机游走 -> 入表 -> 入待广播缓冲
func (s *Simulator) Step() {
	count := s.registry.Count() / 4
	if count < 1 {
		count = 1
	}

	for _, symbol := range s.pickWeightedSymbols(count) {
		tick, ok := s.simulateSymbol(symbol)
		if !ok {
			continue
		}
		metrics.TicksSimulated.Inc()

		// 使用 select/default 防止阻塞模拟循环
		select {
		case s.out <- tick:
		default:
			service.Logger.Warn("Pending tick buffer full! Dropping tick.",
				zap.String("Symbol", symbol))
			metrics.TicksDropped.Inc()
		}
	}
}

// pickWeightedSymbols 加权抽样 k 个不重复的 Symbol
// 把 Symbol 按 tickWeight 重复展开成候选池，有放回抽样后去重，尝试次数封顶
func (s *Simulator) pickWeightedSymbols(k int) []string {
	weights := s.registry.Symbols()

	var pool []string
	for symbol, w := range weights {
		if w < 1 {
			w = 1
		}
		for i := 0; i < w; i++ {
			pool = append(pool, symbol)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	picked := make(map[string]struct{}, k)
	out := make([]string, 0, k)
	tries := k * 5
	if tries > len(pool) {
		tries = len(pool)
	}
	for i := 0; i < tries && len(picked) < k; i++ {
		symbol := pool[s.rng.Intn(len(pool))]
		if _, ok := picked[symbol]; ok {
			continue
		}
		picked[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

// simulateSymbol 对单个 Symbol 做一步有界乘性随机游走
// newPrice = max(epsilon, price * (1 + U(-1,1) * volatility))
func (s *Simulator) simulateSymbol(symbol string) (model.TickMessage, bool) {
	asset, ok := s.registry.Get(symbol)
	if !ok {
		// 未知 Symbol 是 no-op，不算错误
		return model.TickMessage{}, false
	}

	deltaPct := (s.rng.Float64() - 0.5) * 2 * asset.Volatility
	newPrice := asset.Price * (1 + deltaPct)
	if newPrice < priceEpsilon {
		newPrice = priceEpsilon
	}
	volume := float64(s.rng.Intn(1001)) // 合成成交量

	now := time.Now()
	if !s.registry.ApplyTick(symbol, TickUpdate{Price: newPrice, Volume: volume, TS: now}) {
		return model.TickMessage{}, false
	}

	// 用更新后的资产状态构造广播消息（带上最新派生统计）
	return s.registry.TickMessageFor(symbol)
}
