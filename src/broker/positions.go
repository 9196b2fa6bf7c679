package broker

import (
	"context"
	"fmt"
	"strings"

	"autoexit/src/model"
)

// NetQty reads the signed net quantity of a raw positionbook entry. The first
// present numeric field among quantity, netqty, net_qty and qty wins.
func NetQty(raw map[string]interface{}) float64 {
	for _, key := range []string{"quantity", "netqty", "net_qty", "qty"} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func averagePrice(raw map[string]interface{}) *float64 {
	for _, key := range []string{"netavgprc", "average_price", "avgprc"} {
		if f, ok := toFloat(raw[key]); ok {
			return &f
		}
	}
	return nil
}

func toPosition(raw map[string]interface{}) model.Position {
	pnl, _ := toFloat(raw["pnl"])
	return model.Position{
		Symbol:   toString(raw["symbol"]),
		Exchange: toString(raw["exchange"]),
		Product:  toString(raw["product"]),
		NetQty:   NetQty(raw),
		AvgPrice: averagePrice(raw),
		Pnl:      pnl,
	}
}

// GetPositions fetches the positionbook for the account behind apiKey. A
// non-nil error means there is no usable data this cycle; broker refusals are
// returned as *APIError.
func (c *Client) GetPositions(ctx context.Context, apiKey string) ([]model.Position, error) {
	resp, err := c.read.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"apikey": apiKey}).
		Post(positionBookPath)
	if err != nil {
		return nil, fmt.Errorf("positionbook request: %w", err)
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}

	raw := make([]map[string]interface{}, 0)
	if len(env.Data) > 0 && strings.TrimSpace(string(env.Data)) != "null" {
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, fmt.Errorf("decode positionbook data: %w", err)
		}
	}

	positions := make([]model.Position, 0, len(raw))
	for _, entry := range raw {
		pos := toPosition(entry)
		if pos.Symbol == "" {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
