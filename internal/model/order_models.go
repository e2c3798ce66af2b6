package model

import (
	"fmt"
	"time"
)

// OrderSide 定义了订单方向
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Valid 校验方向取值
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus 定义了订单生命周期状态
// 状态机：pending -> filled 或 pending -> rejected，两者都是终态
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusFilled   OrderStatus = "filled"
	StatusRejected OrderStatus = "rejected"
)

// Terminal 判断是否为终态，终态订单不允许再被改写
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusRejected
}

// Order 代表一笔订单记录
// ClientID 用于乐观记录和成交记录之间的对账
type Order struct {
	ID          string      `json:"id,omitempty"` // 服务端编号，成交前为空
	ClientID    string      `json:"clientId,omitempty"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Qty         float64     `json:"qty"`
	Price       float64     `json:"price,omitempty"` // 接单时捕获的价格
	FilledQty   float64     `json:"filledQty,omitempty"`
	AvgPrice    float64     `json:"avgPrice,omitempty"`
	Status      OrderStatus `json:"status"`
	TS          time.Time   `json:"ts"`
	Fee         float64     `json:"fee"`
	SlippagePct float64     `json:"slippagePct"`
	Notes       string      `json:"notes,omitempty"`
}

func (o Order) String() string {
	return fmt.Sprintf("ORDER [%s | %s %s] Qty: %.6f @ %.6f | Status: %s | ClientId: %s",
		o.ID, o.Side, o.Symbol, o.Qty, o.Price, o.Status, o.ClientID)
}
