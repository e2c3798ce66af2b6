// Package orders 实现订单存储和乐观下单/延迟成交管线
package orders

import (
	"sync"
	"time"

	"crypto-trading-panel/internal/model"
)

// Store 是有界的内存订单列表，只追加或按 ClientID 原位替换
// 超过容量后从头部裁剪（保留最新），所有读取都返回快照拷贝
type Store struct {
	mu         sync.RWMutex
	list       []model.Order
	maxEntries int
}

// QueryOpts 是 Query 的筛选条件，零值字段表示不筛选
type QueryOpts struct {
	Limit  int
	Status model.OrderStatus
}

// NewStore 构造订单存储，maxEntries <= 0 表示不设上限
func NewStore(maxEntries int) *Store {
	return &Store{maxEntries: maxEntries}
}

// Append 追加一笔订单并按容量裁剪
func (s *Store) Append(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, order)
	s.pruneLocked(s.maxEntries)
}

// ReplaceByClientID 按 ClientID 扫描并原位替换
// 找不到就追加——宁可多一条也不能丢单
func (s *Store) ReplaceByClientID(clientID string, order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if s.list[i].ClientID == clientID {
			s.list[i] = order
			return
		}
	}
	s.list = append(s.list, order)
	s.pruneLocked(s.maxEntries)
}

// MarkError 把 ClientID 对应的订单原位翻转为 rejected，只在找到且非终态时生效
func (s *Store) MarkError(clientID, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if s.list[i].ClientID != clientID {
			continue
		}
		if s.list[i].Status.Terminal() {
			return false // 终态订单不再改写
		}
		s.list[i].Status = model.StatusRejected
		s.list[i].Notes = reason
		s.list[i].TS = time.Now()
		return true
	}
	return false
}

// Query 返回订单快照，支持状态筛选和"最近 N 条"截断
func (s *Store) Query(opts QueryOpts) []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Order, 0, len(s.list))
	for _, o := range s.list {
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		out = append(out, o)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out
}

// FindByClientID 按 ClientID 查找订单，返回拷贝
func (s *Store) FindByClientID(clientID string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.list {
		if o.ClientID == clientID {
			return o, true
		}
	}
	return model.Order{}, false
}

// Prune 把列表裁剪到 maxEntries 以内，丢掉最老的
func (s *Store) Prune(maxEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(maxEntries)
}

func (s *Store) pruneLocked(maxEntries int) {
	if maxEntries > 0 && len(s.list) > maxEntries {
		s.list = s.list[len(s.list)-maxEntries:]
	}
}

// Len 返回当前订单条数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}
