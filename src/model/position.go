package model

// Position is a read-only snapshot of one broker position, fetched per cycle
// and never persisted.
type Position struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Product  string `json:"product"`

	// NetQty is signed: positive long, negative short, zero flat.
	NetQty float64 `json:"net_qty"`

	// AvgPrice is nil when the broker did not report one.
	AvgPrice *float64 `json:"avg_price,omitempty"`

	// Pnl as reported by the broker, used when no live price is cached.
	Pnl float64 `json:"pnl"`
}

// PositionKey builds the symbol_product key shared by positions and rules.
func PositionKey(symbol, product string) string {
	return symbol + "_" + product
}

func (p Position) Key() string {
	return PositionKey(p.Symbol, p.Product)
}

func (p Position) IsFlat() bool {
	return p.NetQty == 0
}
