package broker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	logger "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	positionBookPath = "/api/v1/positionbook"
	placeOrderPath   = "/api/v1/placeorder"

	statusSuccess = "success"
)

// ErrOrderRejected is returned when the broker answers a placement without an
// explicit acknowledgment.
var ErrOrderRejected = errors.New("order rejected by broker")

// APIError carries a non-success broker answer.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broker api error: http %d status %q", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("broker api error: http %d status %q: %s", e.StatusCode, e.Status, e.Message)
}

// Client talks to the broker REST API. Reads and writes use separate resty
// clients so a slow positionbook can be retried without ever replaying an order.
type Client struct {
	baseURL  string
	strategy string
	read     *resty.Client
	write    *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
		logger.Warnf("No broker base URL provided, using default: %s", baseURL)
	}

	retryCount := cfg.RetryAttempts - 1
	if retryCount < 0 {
		retryCount = 0
	}

	read := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(retryCount).
		SetRetryWaitTime(cfg.RetryBaseDelay).
		SetRetryMaxWaitTime(cfg.RetryMaxDelay).
		AddRetryCondition(isRetryableResp)

	write := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = "ManagementService"
	}

	return &Client{
		baseURL:  baseURL,
		strategy: strategy,
		read:     read,
		write:    write,
	}
}

// envelope is the common shape of every broker answer.
type envelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	OrderID jsoniter.RawMessage `json:"orderid"`
	Data    jsoniter.RawMessage `json:"data"`
}

func decodeEnvelope(resp *resty.Response) (envelope, error) {
	var env envelope
	body := resp.Body()
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if resp.IsError() {
				return env, &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(body))}
			}
			return env, fmt.Errorf("decode broker response: %w", err)
		}
	}
	if resp.IsError() || !strings.EqualFold(env.Status, statusSuccess) {
		return env, &APIError{StatusCode: resp.StatusCode(), Status: env.Status, Message: env.Message}
	}
	return env, nil
}

// toFloat converts the loosely typed numbers brokers emit into float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
