// Package pnl computes live position P&L from the freshest cached price.
package pnl

import (
	"autoexit/src/model"

	"github.com/shopspring/decimal"
)

// PriceSource returns the last traded price of a symbol, if known.
type PriceSource interface {
	LTP(symbol string) (float64, bool)
}

// Live returns the position P&L at the cached LTP when both the LTP and the
// average price are known, otherwise the broker-reported P&L.
// Long: (ltp - avg) * qty. Short: (avg - ltp) * |qty|. No contract multiplier.
func Live(pos model.Position, prices PriceSource) float64 {
	if prices == nil || pos.AvgPrice == nil {
		return pos.Pnl
	}
	ltp, ok := prices.LTP(pos.Symbol)
	if !ok {
		return pos.Pnl
	}
	return At(pos, ltp)
}

// At computes the P&L of pos marked at price, ignoring the broker value.
// Flat positions and positions without an average price yield zero.
func At(pos model.Position, price float64) float64 {
	if pos.AvgPrice == nil || pos.NetQty == 0 {
		return 0
	}

	ltp := decimal.NewFromFloat(price)
	avg := decimal.NewFromFloat(*pos.AvgPrice)
	qty := decimal.NewFromFloat(pos.NetQty)

	var result decimal.Decimal
	if qty.IsPositive() {
		result = ltp.Sub(avg).Mul(qty)
	} else {
		result = avg.Sub(ltp).Mul(qty.Abs())
	}

	return result.InexactFloat64()
}

// Sum adds the live P&L of every position.
func Sum(positions []model.Position, prices PriceSource) float64 {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(decimal.NewFromFloat(Live(p, prices)))
	}
	return total.InexactFloat64()
}
