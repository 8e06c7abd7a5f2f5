package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/pkg/circuitbreaker"
	"github.com/rag-dashboard/backend/pkg/logger"
	"github.com/rag-dashboard/backend/pkg/retry"
)

var ErrBackendUnreachable = errors.New("backend unreachable")

type DialerConfig struct {
	Addr        string
	DialTimeout time.Duration
	Retry       retry.Config
	Breaker     circuitbreaker.Config
}

// Dialer connects to the inference backend, retrying briefly and failing fast
// while the backend is known to be down.
type Dialer struct {
	addr    string
	timeout time.Duration
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
}

func NewDialer(cfg DialerConfig) *Dialer {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger.GetLogger()
	}
	if cfg.Breaker.Logger == nil {
		cfg.Breaker.Logger = logger.GetLogger()
	}
	onChange := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}

	return &Dialer{
		addr:    cfg.Addr,
		timeout: cfg.DialTimeout,
		retry:   cfg.Retry,
		breaker: circuitbreaker.NewCircuitBreaker("inference-backend", cfg.Breaker),
	}
}

func (d *Dialer) Addr() string {
	return d.addr
}

func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	err := d.breaker.Execute(func() error {
		var err error
		conn, err = retry.DoWithResult(ctx, d.retry, func() (net.Conn, error) {
			nd := net.Dialer{Timeout: d.timeout}
			return nd.DialContext(ctx, "tcp", d.addr)
		})
		return err
	})
	if err != nil {
		metrics.BackendDialFailures.Inc()
		logger.Warn("Inference backend unreachable", zap.String("addr", d.addr), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnreachable, d.addr, err)
	}

	logger.Info("Connected to inference backend", zap.String("addr", d.addr))
	return conn, nil
}
