package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

var ErrEmptyFrame = errors.New("zmq message without frames")

// ZMQSource reads multipart [topic, payload] messages from a SUB socket
// subscribed to every topic.
type ZMQSource struct {
	sock     zmq4.Socket
	endpoint string
}

// NewZMQSource dials endpoint, e.g. tcp://127.0.0.1:5555. The socket closes
// when ctx is cancelled.
func NewZMQSource(ctx context.Context, endpoint string) (*ZMQSource, error) {
	sock := zmq4.NewSub(ctx)

	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("dial zmq %s: %w", endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("subscribe zmq %s: %w", endpoint, err)
	}

	return &ZMQSource{sock: sock, endpoint: endpoint}, nil
}

func (s *ZMQSource) Recv(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	msg, err := s.sock.Recv()
	if err != nil {
		return Message{}, fmt.Errorf("recv zmq %s: %w", s.endpoint, err)
	}

	switch len(msg.Frames) {
	case 0:
		return Message{}, ErrEmptyFrame
	case 1:
		// single-part publishers put everything in the payload
		return Message{Payload: msg.Frames[0]}, nil
	default:
		return Message{Topic: string(msg.Frames[0]), Payload: msg.Frames[1]}, nil
	}
}

func (s *ZMQSource) Close() error {
	return s.sock.Close()
}
