package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	TransportZMQ       = "zmq"
	TransportWebSocket = "websocket"
)

type Config struct {
	Transport string `envconfig:"FEED_TRANSPORT" default:"zmq"` // zmq | websocket

	Host string `envconfig:"FEED_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"FEED_PORT" default:"5555"`

	WSURL string `envconfig:"FEED_WS_URL" default:"ws://127.0.0.1:8765"`
	// WSSubscribe is sent verbatim after the websocket handshake, when set.
	WSSubscribe string `envconfig:"FEED_WS_SUBSCRIBE" default:""`

	PollTimeout    time.Duration `envconfig:"FEED_POLL_TIMEOUT" default:"100ms"`
	BufferSize     int           `envconfig:"FEED_BUFFER_SIZE" default:"1024"`
	ReconnectDelay time.Duration `envconfig:"FEED_RECONNECT_DELAY" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// ZMQEndpoint is the publisher address the SUB socket dials.
func (c Config) ZMQEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// NewDialFunc returns the dialer for the configured transport.
func NewDialFunc(c Config) (DialFunc, error) {
	switch strings.ToLower(strings.TrimSpace(c.Transport)) {
	case TransportZMQ, "":
		endpoint := c.ZMQEndpoint()
		return func(ctx context.Context) (Source, error) {
			return NewZMQSource(ctx, endpoint)
		}, nil
	case TransportWebSocket, "ws":
		url, subscribe := c.WSURL, c.WSSubscribe
		return func(ctx context.Context) (Source, error) {
			return NewWebSocketSource(ctx, url, subscribe)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported feed transport %q", c.Transport)
	}
}
