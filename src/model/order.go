package model

const (
	OrderActionBuy  = "BUY"
	OrderActionSell = "SELL"

	PriceTypeMarket = "MARKET"

	// ExitOrderTag marks every order placed by the auto-exit engine.
	ExitOrderTag = "MANAGEMENT_EXIT"
)

// ExitOrder is a market order that closes (part of) a position.
type ExitOrder struct {
	Symbol            string `json:"symbol"`
	Exchange          string `json:"exchange"`
	Product           string `json:"product"`
	Action            string `json:"action"`
	Quantity          int    `json:"quantity"`
	PriceType         string `json:"pricetype"`
	Price             string `json:"price"`
	TriggerPrice      string `json:"trigger_price"`
	DisclosedQuantity string `json:"disclosed_quantity"`
	Tag               string `json:"tag"`
}

// OrderAck is the broker acknowledgment of an accepted order.
type OrderAck struct {
	OrderID string `json:"orderid"`
	Status  string `json:"status"`
}
