package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/pkg/logger"
)

// Socket is the client side of a bridge; *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Observer sees every message after it has been unframed.
type Observer interface {
	ClientMessage(payload []byte)
	BackendMessage(payload []byte)
}

type Bridge struct {
	maxFrameBytes uint64
	observer      Observer
}

func NewBridge(maxFrameBytes uint64, observer Observer) *Bridge {
	return &Bridge{maxFrameBytes: maxFrameBytes, observer: observer}
}

// Run relays messages in both directions until either side closes or ctx ends,
// then closes both.
func (b *Bridge) Run(ctx context.Context, client Socket, backend io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closing atomic.Bool
	var once sync.Once
	stop := func() {
		once.Do(func() {
			closing.Store(true)
			_ = backend.Close()
			_ = client.Close()
		})
	}

	pump := func(name string, fn func() error) func() error {
		return func() error {
			defer cancel()
			err := fn()
			if err == nil || closing.Load() || isClosed(err) {
				logger.Debug("Proxy direction finished", zap.String("direction", name))
				return nil
			}
			return err
		}
	}

	g := new(errgroup.Group)
	g.Go(pump("to_client", func() error { return b.toClient(client, backend) }))
	g.Go(pump("to_backend", func() error { return b.toBackend(client, backend) }))
	g.Go(func() error {
		<-ctx.Done()
		stop()
		return nil
	})

	return g.Wait()
}

func (b *Bridge) toClient(client Socket, backend io.Reader) error {
	for {
		payload, err := ReadFrame(backend, b.maxFrameBytes)
		if err != nil {
			return err
		}
		metrics.ProxyFrames.WithLabelValues("inbound").Inc()
		if b.observer != nil {
			b.observer.BackendMessage(payload)
		}
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
}

func (b *Bridge) toBackend(client Socket, backend io.Writer) error {
	for {
		_, data, err := client.ReadMessage()
		if err != nil {
			return err
		}
		metrics.ProxyFrames.WithLabelValues("outbound").Inc()
		if b.observer != nil {
			b.observer.ClientMessage(data)
		}
		if err := WriteFrame(backend, data); err != nil {
			return err
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
