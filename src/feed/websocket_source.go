package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

// WebSocketSource reads JSON envelopes {"topic": "...", "data": {...}} from a
// websocket. Frames without an envelope are passed through as the payload.
type WebSocketSource struct {
	conn *websocket.Conn
	url  string
}

type envelope struct {
	Topic string              `json:"topic"`
	Data  jsoniter.RawMessage `json:"data"`
}

func NewWebSocketSource(ctx context.Context, url, subscribe string) (*WebSocketSource, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}

	if subscribe != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribe)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("send websocket subscription: %w", err)
		}
	}

	return &WebSocketSource{conn: conn, url: url}, nil
}

func (s *WebSocketSource) Recv(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return Message{}, fmt.Errorf("read websocket %s: %w", s.url, err)
	}

	return unwrapEnvelope(data), nil
}

func (s *WebSocketSource) Close() error {
	return s.conn.Close()
}

func unwrapEnvelope(frame []byte) Message {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{Payload: frame}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Message{Topic: env.Topic, Payload: frame}
	}
	return Message{Topic: env.Topic, Payload: env.Data}
}
