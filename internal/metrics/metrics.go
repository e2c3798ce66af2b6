// Package metrics 暴露面板各环节的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksSimulated 模拟器产生的 Tick 总数
	TicksSimulated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panel_ticks_simulated_total",
		Help: "Total number of simulated price ticks.",
	})

	// TicksDropped 待广播缓冲写满后被丢弃的 Tick 总数
	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panel_ticks_dropped_total",
		Help: "Total number of ticks dropped because the pending buffer was full.",
	})

	// TicksBroadcast 合并后实际下发给客户端的 Tick 总数
	TicksBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panel_ticks_broadcast_total",
		Help: "Total number of coalesced ticks handed to the websocket registry.",
	})

	// BroadcastBatches 非空冲刷批次数
	BroadcastBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "panel_broadcast_batches_total",
		Help: "Total number of non-empty broadcast flushes.",
	})

	// WSClients 当前在线的 WebSocket 客户端数量
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "panel_ws_clients",
		Help: "Number of currently registered websocket clients.",
	})

	// OrdersSubmitted 按终态统计的订单数量
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "panel_orders_total",
		Help: "Total number of orders by outcome.",
	}, []string{"status"})
)
