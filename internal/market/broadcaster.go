package market

import (
	"context"
	"time"

	"crypto-trading-panel/internal/metrics"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/service"

	"go.uber.org/zap"
)

// Sink 是广播器的下游，由 WebSocket 客户端注册表实现
type Sink interface {
	Broadcast(ticks []model.TickMessage)
}

// Broadcaster 按独立节奏冲刷待广播缓冲
// 同一 Symbol 在一个冲刷周期内只保留最后一条（last-write-wins 合并），
// 把高频模拟节奏和面向客户端的网络节奏解耦
type Broadcaster struct {
	pending  chan model.TickMessage
	sink     Sink
	interval time.Duration
}

// NewBroadcaster 构造广播器，bufSize 是待广播缓冲的容量
func NewBroadcaster(sink Sink, interval time.Duration, bufSize int) *Broadcaster {
	return &Broadcaster{
		pending:  make(chan model.TickMessage, bufSize),
		sink:     sink,
		interval: interval,
	}
}

// Source 返回写入端，模拟器和订单管线都往这里投递
func (b *Broadcaster) Source() chan<- model.TickMessage {
	return b.pending
}

// Run 启动冲刷循环，ctx 取消后退出
func (b *Broadcaster) Run(ctx context.Context) {
	service.Logger.Info("Tick broadcaster started", zap.Duration("Interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			service.Logger.Info("Tick broadcaster stopped")
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Flush 排空缓冲并按 Symbol 合并后交给下游，缓冲为空时什么都不做
// 返回本次实际下发的批次，方便测试断言
func (b *Broadcaster) Flush() []model.TickMessage {
	// 按 Symbol 合并：后到的覆盖先到的，输出顺序按首次出现
	latest := make(map[string]model.TickMessage)
	var order []string

	for {
		select {
		case tick := <-b.pending:
			if _, ok := latest[tick.Symbol]; !ok {
				order = append(order, tick.Symbol)
			}
			latest[tick.Symbol] = tick
		default:
			if len(order) == 0 {
				return nil
			}
			batch := make([]model.TickMessage, 0, len(order))
			for _, symbol := range order {
				batch = append(batch, latest[symbol])
			}
			b.sink.Broadcast(batch)
			metrics.BroadcastBatches.Inc()
			metrics.TicksBroadcast.Add(float64(len(batch)))
			return batch
		}
	}
}
