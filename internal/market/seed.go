package market

import (
	"math/rand"
	"time"

	"crypto-trading-panel/internal/model"
)

// GenerateHistory 为一个资产生成简单随机游走的合成历史（价格 + 成交量）
// length 个点，按秒间隔排到当前时刻
func GenerateHistory(basePrice, volatility float64, length int) []model.HistoryEntry {
	history := make([]model.HistoryEntry, 0, length)
	price := basePrice
	now := time.Now().Truncate(time.Second)
	for i := length - 1; i >= 0; i-- {
		// 以波动系数为幅度的小抖动
		jitter := (rand.Float64() - 0.5) * 2 * volatility * price
		price = price + jitter
		if price < priceEpsilon {
			price = priceEpsilon
		}
		volume := float64(1 + rand.Intn(1000))
		history = append(history, model.HistoryEntry{
			TS:     now.Add(-time.Duration(i) * time.Second),
			Price:  price,
			Volume: volume,
		})
	}
	return history
}

// DefaultAssets 返回种子资产列表（按市值取前 10 的快照）
// Symbol 选取：BTC, ETH, USDT, BNB, XRP, SOL, USDC, ADA, DOGE, TRX
func DefaultAssets(historyLen int) []*model.Asset {
	now := time.Now()
	seed := func(id, symbol, name, chain string, typ model.AssetType, decimals int,
		basePrice, volatility float64, tickWeight int, liquidityDepth float64) *model.Asset {
		return &model.Asset{
			ID:             id,
			Symbol:         symbol,
			Name:           name,
			Chain:          chain,
			Type:           typ,
			Decimals:       decimals,
			BasePrice:      basePrice,
			Price:          basePrice,
			TickWeight:     tickWeight,
			Volatility:     volatility,
			LiquidityDepth: liquidityDepth,
			LastUpdated:    now,
			History:        GenerateHistory(basePrice, volatility, historyLen),
		}
	}

	btc := seed("asset_btc", "BTC", "Bitcoin", "bitcoin", model.AssetNative, 8, 112803.614493347, 0.002, 10, 10_000_000)
	eth := seed("asset_eth", "ETH", "Ethereum", "ethereum", model.AssetNative, 18, 4133.1105358015, 0.003, 9, 8_000_000)
	bnb := seed("asset_bnb", "BNB", "BNB", "bsc", model.AssetNative, 18, 1221.6576705859, 0.004, 7, 3_000_000)
	xrp := seed("asset_xrp", "XRP", "XRP", "ripple", model.AssetNative, 6, 2.5157, 0.006, 5, 2_000_000)
	sol := seed("asset_sol", "SOL", "Solana", "solana", model.AssetNative, 9, 195.07, 0.007, 5, 2_000_000)
	ada := seed("asset_ada", "ADA", "Cardano", "cardano", model.AssetNative, 6, 0.7015, 0.006, 4, 1_000_000)
	doge := seed("asset_doge", "DOGE", "Dogecoin", "dogecoin", model.AssetNative, 8, 0.199459, 0.01, 4, 1_000_000)
	trx := seed("asset_trx", "TRX", "TRON", "tron", model.AssetNative, 6, 0.3414, 0.007, 3, 800_000)

	// 两个稳定币是 ERC20 代币，带一个展示用的 AMM 池快照
	usdt := seed("asset_usdt", "USDT", "Tether USDt", "ethereum", model.AssetToken, 6, 1.0005458683, 0.00005, 6, 5_000_000)
	usdt.TokenStandard = "ERC20"
	usdt.IsStableCoin = true
	usdt.Pool = &model.Pool{BaseSymbol: "ETH", ReserveBase: 2000, ReserveToken: 2_000_000, FeeRate: 0.001}

	usdc := seed("asset_usdc", "USDC", "USD Coin", "ethereum", model.AssetToken, 6, 1.00049, 0.00005, 6, 5_000_000)
	usdc.TokenStandard = "ERC20"
	usdc.IsStableCoin = true
	usdc.Pool = &model.Pool{BaseSymbol: "ETH", ReserveBase: 1800, ReserveToken: 1_800_000, FeeRate: 0.001}

	return []*model.Asset{btc, eth, usdt, bnb, xrp, sol, usdc, ada, doge, trx}
}
