// Package ta 基于资产历史缓冲计算展示用技术指标
package ta

import (
	"errors"

	"crypto-trading-panel/internal/model"

	"github.com/markcheno/go-talib"
)

// ErrNotEnoughHistory 表示历史长度不足以计算指标
var ErrNotEnoughHistory = errors.New("history too short for indicators")

// Indicators 存储最新一组指标值
type Indicators struct {
	SMA float64 // 简单均线 (周期 20)
	RSI float64 // 相对强弱指数 (周期 14)
}

// Calculator 负责把历史缓冲换算成指标
type Calculator struct {
	smaPeriod     int
	rsiPeriod     int
	minHistoryLen int // 计算指标所需的最小历史长度
}

// NewCalculator 初始化指标计算器
func NewCalculator() *Calculator {
	return &Calculator{
		smaPeriod:     20,
		rsiPeriod:     14,
		minHistoryLen: 30, // 预留安全长度
	}
}

// Summarize 对一段历史缓冲计算全部指标
func (c *Calculator) Summarize(history []model.HistoryEntry) (Indicators, error) {
	if len(history) < c.minHistoryLen {
		return Indicators{}, ErrNotEnoughHistory
	}

	closePrices := make([]float64, len(history))
	for i, h := range history {
		closePrices[i] = h.Price
	}

	// --- 均线 (SMA 20) ---
	smaResult := talib.Sma(closePrices, c.smaPeriod)
	sma := smaResult[len(smaResult)-1] // 取最新值

	// --- 相对强弱指数 (RSI 14) ---
	rsiResult := talib.Rsi(closePrices, c.rsiPeriod)
	rsi := rsiResult[len(rsiResult)-1]

	return Indicators{SMA: sma, RSI: rsi}, nil
}
