package feed

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPublisher binds a PUB socket on a loopback port and republishes msgs
// until ctx is done, so a late SUB still sees them.
func startPublisher(t *testing.T, ctx context.Context, msgs ...zmq4.Msg) int {
	t.Helper()

	pub := zmq4.NewPub(ctx)
	require.NoError(t, pub.Listen("tcp://127.0.0.1:0"))
	t.Cleanup(func() { _ = pub.Close() })

	addr, ok := pub.Addr().(*net.TCPAddr)
	require.True(t, ok, "unexpected publisher address %v", pub.Addr())

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			for _, m := range msgs {
				if err := pub.Send(m); err != nil {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return addr.Port
}

func TestZMQSourceReceivesMultipartAndSingleFrame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	port := startPublisher(t, ctx,
		zmq4.NewMsgFrom([]byte("NSE_INFY_LTP"), []byte(`{"ltp":1501}`)),
		zmq4.NewMsg([]byte(`{"symbol":"TCS","ltp":3900}`)),
	)

	src, err := NewZMQSource(ctx, Config{Host: "127.0.0.1", Port: port}.ZMQEndpoint())
	require.NoError(t, err)
	defer src.Close()

	seen := map[string]Message{}
	for len(seen) < 2 {
		msg, err := src.Recv(ctx)
		require.NoError(t, err)
		if msg.Topic == "" {
			seen["single"] = msg
		} else {
			seen["multipart"] = msg
		}
	}

	assert.Equal(t, "NSE_INFY_LTP", seen["multipart"].Topic)
	assert.JSONEq(t, `{"ltp":1501}`, string(seen["multipart"].Payload))
	assert.JSONEq(t, `{"symbol":"TCS","ltp":3900}`, string(seen["single"].Payload))
}

func TestSubscriberOverZMQAppliesQuotes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	port := startPublisher(t, ctx,
		zmq4.NewMsgFrom([]byte("NSE_INFY_LTP"), []byte(`{"ltp":"1501.5"}`)),
		zmq4.NewMsg([]byte(`{"symbol":"TCS","ltp":3900,"volume":10}`)),
	)

	dial, err := NewDialFunc(Config{Transport: TransportZMQ, Host: "127.0.0.1", Port: port})
	require.NoError(t, err)

	sub, cache, _ := newTestSubscriber(t, dial)
	sub.Start(ctx)

	for cache.Len() < 2 {
		require.NoError(t, ctx.Err(), "quotes never arrived over zmq")
		sub.Poll(ctx, 100*time.Millisecond, true)
	}

	ltp, ok := cache.LTP("INFY")
	require.True(t, ok)
	assert.Equal(t, 1501.5, ltp)

	q, ok := cache.Get("TCS")
	require.True(t, ok)
	require.NotNil(t, q.Volume)
	assert.Equal(t, 10.0, *q.Volume)
	assert.Equal(t, 3900.0, *q.LTP)
}
