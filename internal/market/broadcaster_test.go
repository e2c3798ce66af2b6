package market

import (
	"testing"
	"time"

	"crypto-trading-panel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 记录每次下发的批次
type recordingSink struct {
	batches [][]model.TickMessage
}

func (s *recordingSink) Broadcast(ticks []model.TickMessage) {
	s.batches = append(s.batches, ticks)
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(sink, time.Millisecond, 64)

	batch := b.Flush()
	assert.Nil(t, batch)
	assert.Empty(t, sink.batches)
}

func TestFlushCoalescesLastWriteWins(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(sink, time.Millisecond, 64)

	// 同一个冲刷周期内 BTC 来了两笔，只有后一笔应该被下发
	b.Source() <- model.TickMessage{Type: "tick", Symbol: "BTC", Price: 100000}
	b.Source() <- model.TickMessage{Type: "tick", Symbol: "ETH", Price: 4000}
	b.Source() <- model.TickMessage{Type: "tick", Symbol: "BTC", Price: 100500}

	batch := b.Flush()
	require.Len(t, batch, 2)
	require.Len(t, sink.batches, 1)

	bySymbol := make(map[string]model.TickMessage)
	for _, tick := range batch {
		bySymbol[tick.Symbol] = tick
	}
	assert.Equal(t, 100500.0, bySymbol["BTC"].Price)
	assert.Equal(t, 4000.0, bySymbol["ETH"].Price)
}

func TestFlushClearsBuffer(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(sink, time.Millisecond, 64)

	b.Source() <- model.TickMessage{Type: "tick", Symbol: "BTC", Price: 100000}
	require.Len(t, b.Flush(), 1)

	// 第二次冲刷没有新数据，什么都不发
	assert.Nil(t, b.Flush())
	assert.Len(t, sink.batches, 1)
}

func TestFlushPreservesFirstSeenOrder(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(sink, time.Millisecond, 64)

	b.Source() <- model.TickMessage{Type: "tick", Symbol: "ETH", Price: 4000}
	b.Source() <- model.TickMessage{Type: "tick", Symbol: "BTC", Price: 100000}
	b.Source() <- model.TickMessage{Type: "tick", Symbol: "ETH", Price: 4100}

	batch := b.Flush()
	require.Len(t, batch, 2)
	assert.Equal(t, "ETH", batch[0].Symbol)
	assert.Equal(t, 4100.0, batch[0].Price)
	assert.Equal(t, "BTC", batch[1].Symbol)
}
