package feed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"autoexit/src/model"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNoSymbol marks a message whose symbol cannot be resolved. Such
	// messages are dropped without logging.
	ErrNoSymbol = errors.New("feed message has no resolvable symbol")

	ErrMalformedPayload = errors.New("malformed feed payload")
)

// Decode resolves the symbol of msg and extracts its quote fields. A payload
// with any non-numeric quote field is rejected as a whole.
func Decode(msg Message) (string, model.Quote, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return "", model.Quote{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		return "", model.Quote{}, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	symbol := SymbolFor(msg.Topic, payload)
	if symbol == "" {
		return "", model.Quote{}, ErrNoSymbol
	}

	var q model.Quote
	targets := []struct {
		key string
		dst **float64
	}{
		{"ltp", &q.LTP},
		{"open", &q.Open},
		{"high", &q.High},
		{"low", &q.Low},
		{"close", &q.Close},
		{"volume", &q.Volume},
	}

	for _, t := range targets {
		raw, ok := payload[t.key]
		if !ok || raw == nil {
			continue
		}
		v, ok := toFloat(raw)
		if !ok {
			return symbol, model.Quote{}, fmt.Errorf("%w: field %s=%v is not numeric", ErrMalformedPayload, t.key, raw)
		}
		*t.dst = &v
	}

	return symbol, q, nil
}

// SymbolFor prefers the payload symbol; otherwise it takes the second to last
// underscore separated segment of a topic with at least three segments,
// e.g. NSE_INFY_LTP -> INFY.
func SymbolFor(topic string, payload map[string]interface{}) string {
	if s, ok := payload["symbol"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}

	parts := strings.Split(topic, "_")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
