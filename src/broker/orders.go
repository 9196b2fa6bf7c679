package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"autoexit/src/model"
)

type placeOrderRequest struct {
	APIKey            string `json:"apikey"`
	Strategy          string `json:"strategy"`
	Symbol            string `json:"symbol"`
	Action            string `json:"action"`
	Exchange          string `json:"exchange"`
	PriceType         string `json:"pricetype"`
	Product           string `json:"product"`
	Quantity          string `json:"quantity"`
	Price             string `json:"price"`
	TriggerPrice      string `json:"trigger_price"`
	DisclosedQuantity string `json:"disclosed_quantity"`
	Tag               string `json:"tag,omitempty"`
}

func newPlaceOrderRequest(apiKey, strategy string, order model.ExitOrder) placeOrderRequest {
	return placeOrderRequest{
		APIKey:            apiKey,
		Strategy:          strategy,
		Symbol:            order.Symbol,
		Action:            order.Action,
		Exchange:          order.Exchange,
		PriceType:         orDefault(order.PriceType, model.PriceTypeMarket),
		Product:           order.Product,
		Quantity:          strconv.Itoa(order.Quantity),
		Price:             orDefault(order.Price, "0"),
		TriggerPrice:      orDefault(order.TriggerPrice, "0"),
		DisclosedQuantity: orDefault(order.DisclosedQuantity, "0"),
		Tag:               order.Tag,
	}
}

// PlaceMarketOrder submits an exit order. It succeeds only on an explicit
// acknowledgment carrying an order id; anything else wraps ErrOrderRejected.
func (c *Client) PlaceMarketOrder(ctx context.Context, apiKey string, order model.ExitOrder) (model.OrderAck, error) {
	if order.Quantity <= 0 {
		return model.OrderAck{}, fmt.Errorf("%w: quantity must be positive", ErrOrderRejected)
	}

	resp, err := c.write.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(newPlaceOrderRequest(apiKey, c.strategy, order)).
		Post(placeOrderPath)
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("placeorder request: %w", err)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return model.OrderAck{Status: apiErr.Status}, fmt.Errorf("%w: %v", ErrOrderRejected, err)
		}
		return model.OrderAck{}, err
	}

	var rawID interface{}
	if len(env.OrderID) > 0 {
		if err := json.Unmarshal(env.OrderID, &rawID); err != nil {
			return model.OrderAck{Status: env.Status}, fmt.Errorf("%w: unreadable order id", ErrOrderRejected)
		}
	}
	ack := model.OrderAck{OrderID: toString(rawID), Status: env.Status}
	if ack.OrderID == "" {
		return ack, fmt.Errorf("%w: acknowledgment without order id", ErrOrderRejected)
	}
	return ack, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
