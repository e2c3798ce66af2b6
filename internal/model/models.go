package model

import "time"

// AssetType 区分链原生币和合约代币
type AssetType string

const (
	AssetNative AssetType = "native" // 链原生币
	AssetToken  AssetType = "token"  // 智能合约代币
)

// Pool 记录一个恒定乘积 AMM 池快照（仅用于展示流动性，不是撮合机制）
type Pool struct {
	BaseSymbol   string  `json:"baseSymbol"`
	ReserveBase  float64 `json:"reserveBase"`
	ReserveToken float64 `json:"reserveToken"`
	FeeRate      float64 `json:"feeRate"`
}

// HistoryEntry 是历史环形缓冲中的一条 {时间, 价格, 成交量} 记录
type HistoryEntry struct {
	TS     time.Time `json:"ts"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume,omitempty"`
}

// Asset 代表注册表中的一个资产及其派生 24h 统计
type Asset struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Chain         string    `json:"chain"`
	Type          AssetType `json:"type"`
	Decimals      int       `json:"decimals"`
	TokenStandard string    `json:"tokenStandard,omitempty"`

	BasePrice float64 `json:"basePrice"`
	Price     float64 `json:"price"`

	// 派生统计：始终由历史缓冲重算，不允许被单独修改
	Open24h   float64 `json:"open24h"`
	High24h   float64 `json:"high24h"`
	Low24h    float64 `json:"low24h"`
	Volume24h float64 `json:"volume24h"`
	Change24h float64 `json:"change24h"` // 百分比，保留 6 位小数

	IsStableCoin   bool    `json:"isStableCoin,omitempty"`
	TickWeight     int     `json:"tickWeight"`     // 加权抽样权重，越大越容易被选中
	Volatility     float64 `json:"volatility"`     // 随机游走的波动系数
	LiquidityDepth float64 `json:"liquidityDepth"` // 展示用流动性深度

	Pool        *Pool          `json:"pool,omitempty"`
	LastUpdated time.Time      `json:"lastUpdated"`
	History     []HistoryEntry `json:"history,omitempty"`
}

// Clone 返回资产的深拷贝，历史缓冲和池快照都复制一份
// 注册表对外只交出拷贝，外部无法改到共享状态
func (a *Asset) Clone() Asset {
	cp := *a
	if a.Pool != nil {
		pool := *a.Pool
		cp.Pool = &pool
	}
	if a.History != nil {
		cp.History = make([]HistoryEntry, len(a.History))
		copy(cp.History, a.History)
	}
	return cp
}

// PoolSnapshot 是广播消息里携带的精简池状态
type PoolSnapshot struct {
	ReserveBase  float64 `json:"reserveBase"`
	ReserveToken float64 `json:"reserveToken"`
	FeeRate      float64 `json:"feeRate"`
}

// TickMessage 是推送给 WebSocket 客户端的单条行情
type TickMessage struct {
	Type           string        `json:"type"` // 恒为 "tick"
	Symbol         string        `json:"symbol"`
	Price          float64       `json:"price"`
	Volume         float64       `json:"volume,omitempty"`
	Open24h        float64       `json:"open24h"`
	Change24hPct   float64       `json:"change24hPct"`
	High24h        float64       `json:"high24h,omitempty"`
	Low24h         float64       `json:"low24h,omitempty"`
	LiquidityDepth float64       `json:"liquidityDepth"`
	Pool           *PoolSnapshot `json:"pool,omitempty"`
	TS             time.Time     `json:"ts"`
}

// SnapshotMessage 是连接建立后立即下发的全量快照
type SnapshotMessage struct {
	Type string        `json:"type"` // 恒为 "snapshot"
	Data []TickMessage `json:"data"`
}
