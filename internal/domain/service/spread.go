package service

// Spread 最优卖价减最优买价
func Spread(bestBid, bestAsk float64) float64 {
	return bestAsk - bestBid
}

// SpreadPct 价差相对最优买价的百分比
func SpreadPct(bestBid, bestAsk float64) float64 {
	if bestBid <= 0 {
		return 0
	}
	return Spread(bestBid, bestAsk) / bestBid * 100
}

// SpreadColor -1 red, 0 yellow, +1 green
func SpreadColor(spreadPct, minPct, maxPct float64) int {
	if spreadPct <= minPct {
		return +1
	}
	if spreadPct >= maxPct {
		return -1
	}
	return 0
}
