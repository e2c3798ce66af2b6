package market

import (
	"testing"
	"time"

	"crypto-trading-panel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickWeightedSymbolsBounds(t *testing.T) {
	r := NewRegistry(DefaultAssets(10), 600)
	out := make(chan model.TickMessage, 64)
	s := NewSimulator(r, out, time.Millisecond)

	for i := 0; i < 50; i++ {
		picked := s.pickWeightedSymbols(3)
		require.NotEmpty(t, picked)
		require.LessOrEqual(t, len(picked), 3)

		// 抽样结果必须去重
		seen := make(map[string]struct{})
		for _, symbol := range picked {
			_, dup := seen[symbol]
			require.False(t, dup, "duplicate symbol %s", symbol)
			seen[symbol] = struct{}{}
		}
	}
}

func TestPickWeightedSymbolsRespectsWeight(t *testing.T) {
	r := NewRegistry(DefaultAssets(10), 600)
	out := make(chan model.TickMessage, 64)
	s := NewSimulator(r, out, time.Millisecond)

	// BTC 的权重最高 (10)，TRX 最低 (3)，多轮抽样后 BTC 命中次数应该明显更多
	hits := make(map[string]int)
	for i := 0; i < 2000; i++ {
		for _, symbol := range s.pickWeightedSymbols(1) {
			hits[symbol]++
		}
	}
	assert.Greater(t, hits["BTC"], hits["TRX"])
}

func TestStepPushesTicksAndKeepsPricesPositive(t *testing.T) {
	r := NewRegistry(DefaultAssets(10), 600)
	out := make(chan model.TickMessage, 4096)
	s := NewSimulator(r, out, time.Millisecond)

	for i := 0; i < 1000; i++ {
		s.Step()
	}

	// 任意次模拟之后所有价格严格为正
	for _, a := range r.List() {
		require.Greater(t, a.Price, 0.0, "price of %s must stay positive", a.Symbol)
	}

	// 待广播缓冲里收到了 Tick，并且形状完整
	require.NotEmpty(t, out)
	tick := <-out
	assert.Equal(t, "tick", tick.Type)
	assert.Greater(t, tick.Price, 0.0)
	assert.NotZero(t, tick.TS)
}

func TestStepSelectsQuarterOfRegistry(t *testing.T) {
	r := NewRegistry(DefaultAssets(10), 600)
	out := make(chan model.TickMessage, 64)
	s := NewSimulator(r, out, time.Millisecond)

	s.Step()

	// 10 个资产每步最多抽 2 个（n/4 向下取整）
	assert.LessOrEqual(t, len(out), 2)
	assert.GreaterOrEqual(t, len(out), 1)
}

func TestRandomWalkIsBounded(t *testing.T) {
	r := NewRegistry(DefaultAssets(10), 600)
	out := make(chan model.TickMessage, 4096)
	s := NewSimulator(r, out, time.Millisecond)

	before := make(map[string]float64)
	for _, a := range r.List() {
		before[a.Symbol] = a.Price
	}

	s.Step()

	// 单步涨跌幅不超过各自的波动系数
	for _, a := range r.List() {
		prev := before[a.Symbol]
		ratio := a.Price/prev - 1
		if ratio < 0 {
			ratio = -ratio
		}
		assert.LessOrEqual(t, ratio, a.Volatility+1e-12,
			"one step of %s moved more than its volatility", a.Symbol)
	}
}
