package market

import (
	"sync"
	"time"

	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/service"
)

// priceEpsilon 是价格下限，任何时刻价格都不允许跌到 0 或负数
const priceEpsilon = 0.00000001

// TickUpdate 描述一次对资产的行情更新
// Price <= 0 表示本次不改价（只累加成交量），TS 为零值时取当前时间
type TickUpdate struct {
	Price  float64
	Volume float64
	TS     time.Time
	Pool   *model.PoolSnapshot // 可选的池状态覆盖
}

// Registry 是进程内唯一的资产注册表
// 模拟器和订单管线写，广播器和 HTTP 处理器读；对外一律交出拷贝
type Registry struct {
	mu         sync.RWMutex
	assets     map[string]*model.Asset
	order      []string // 保持种子顺序，用于稳定的列表输出
	historyMax int
}

// NewRegistry 用种子资产构造注册表
func NewRegistry(assets []*model.Asset, historyMax int) *Registry {
	r := &Registry{
		assets:     make(map[string]*model.Asset, len(assets)),
		order:      make([]string, 0, len(assets)),
		historyMax: historyMax,
	}
	for _, a := range assets {
		r.assets[a.Symbol] = a
		r.order = append(r.order, a.Symbol)
		// 种子历史也可能超长，入表时先裁剪再重算派生统计
		r.capHistory(a)
		r.recomputeDerived(a)
	}
	return r
}

// Count 返回资产个数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// Get 按 Symbol 查询资产，返回深拷贝
func (r *Registry) Get(symbol string) (model.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[symbol]
	if !ok {
		return model.Asset{}, false
	}
	return a.Clone(), true
}

// List 按种子顺序返回全部资产的深拷贝
func (r *Registry) List() []model.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Asset, 0, len(r.order))
	for _, symbol := range r.order {
		out = append(out, r.assets[symbol].Clone())
	}
	return out
}

// Symbols 返回全部 Symbol 及其抽样权重（模拟器的加权抽样输入）
func (r *Registry) Symbols() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.assets))
	for symbol, a := range r.assets {
		out[symbol] = a.TickWeight
	}
	return out
}

// ApplyTick 应用一次行情更新
// 未知 Symbol 是 no-op（返回 false），不算错误
func (r *Registry) ApplyTick(symbol string, tick TickUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[symbol]
	if !ok {
		return false
	}

	ts := tick.TS
	if ts.IsZero() {
		ts = time.Now()
	}

	// 1. 改价（带下限保护）
	if tick.Price > 0 {
		a.Price = tick.Price
		if a.Price < priceEpsilon {
			a.Price = priceEpsilon
		}
	}
	a.LastUpdated = ts

	// 2. 推入历史缓冲，容量封顶后先进先出
	a.History = append(a.History, model.HistoryEntry{TS: ts, Price: a.Price, Volume: tick.Volume})
	r.capHistory(a)

	// 3. 池快照浅合并（只在资产本身有池时生效）
	if tick.Pool != nil && a.Pool != nil {
		a.Pool.ReserveBase = tick.Pool.ReserveBase
		a.Pool.ReserveToken = tick.Pool.ReserveToken
		if tick.Pool.FeeRate > 0 {
			a.Pool.FeeRate = tick.Pool.FeeRate
		}
	}

	// 4. 派生统计永远从当前历史缓冲重算
	r.recomputeDerived(a)
	return true
}

// TickMessageFor 按当前资产状态构造一条广播消息，未知 Symbol 返回 false
func (r *Registry) TickMessageFor(symbol string) (model.TickMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[symbol]
	if !ok {
		return model.TickMessage{}, false
	}
	return r.tickMessageLocked(a), true
}

// SnapshotTicks 返回覆盖全部资产的行情快照（连接建立时下发）
func (r *Registry) SnapshotTicks() []model.TickMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticks := make([]model.TickMessage, 0, len(r.order))
	for _, symbol := range r.order {
		ticks = append(ticks, r.tickMessageLocked(r.assets[symbol]))
	}
	return ticks
}

func (r *Registry) tickMessageLocked(a *model.Asset) model.TickMessage {
	open24h := a.Open24h
	if open24h == 0 {
		// 历史为空时退回基准价
		open24h = a.BasePrice
	}
	changePct := 0.0
	if open24h != 0 {
		changePct = service.Round6((a.Price - open24h) / open24h * 100)
	}
	tick := model.TickMessage{
		Type:           "tick",
		Symbol:         a.Symbol,
		Price:          a.Price,
		Volume:         a.Volume24h,
		Open24h:        open24h,
		Change24hPct:   changePct,
		High24h:        a.High24h,
		Low24h:         a.Low24h,
		LiquidityDepth: a.LiquidityDepth,
		TS:             time.Now(),
	}
	if a.Pool != nil {
		tick.Pool = &model.PoolSnapshot{
			ReserveBase:  a.Pool.ReserveBase,
			ReserveToken: a.Pool.ReserveToken,
			FeeRate:      a.Pool.FeeRate,
		}
	}
	return tick
}

// capHistory 把历史缓冲裁剪到容量以内，丢掉最老的条目
func (r *Registry) capHistory(a *model.Asset) {
	if r.historyMax > 0 && len(a.History) > r.historyMax {
		a.History = a.History[len(a.History)-r.historyMax:]
	}
}

// recomputeDerived 扫描整个历史缓冲重算 24h 统计
// open = 最老一条的价格，high/low = 全缓冲最值，volume = 累加
func (r *Registry) recomputeDerived(a *model.Asset) {
	if len(a.History) == 0 {
		return
	}

	open24h := a.History[0].Price
	high24h := a.History[0].Price
	low24h := a.History[0].Price
	volume24h := 0.0
	for _, h := range a.History {
		if h.Price > high24h {
			high24h = h.Price
		}
		if h.Price < low24h {
			low24h = h.Price
		}
		volume24h += h.Volume
	}

	a.Open24h = open24h
	a.High24h = high24h
	a.Low24h = low24h
	a.Volume24h = volume24h
	if open24h != 0 {
		a.Change24h = service.Round6((a.Price - open24h) / open24h * 100)
	}
}
