package serial

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// LinkConfig 收发参数
type LinkConfig struct {
	// MaxFrame 单帧接收上限
	MaxFrame int
	// TxTimeout 一次发送允许的最长时间
	TxTimeout time.Duration
	// RxTimeout Transact 等待应答的最长时间
	RxTimeout time.Duration
}

const (
	DefaultMaxFrame  = 1034
	DefaultTxTimeout = time.Second
	DefaultRxTimeout = time.Second
)

// Link 一条串口链路。发送是单请求的：上一次发送未完成时新的 Transmit 立即返回忙。
// Receive 不可并发调用。
type Link struct {
	name   string
	rw     io.ReadWriter
	framer *Framer
	cfg    LinkConfig
	lc     logger.LoggingClient
	txSem  chan struct{}
}

// NewLink 包装一个已打开的端口
func NewLink(name string, rw io.ReadWriter, cfg LinkConfig, lc logger.LoggingClient) *Link {
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultTxTimeout
	}
	if cfg.RxTimeout <= 0 {
		cfg.RxTimeout = DefaultRxTimeout
	}
	return &Link{
		name:   name,
		rw:     rw,
		framer: NewFramer(rw, cfg.MaxFrame),
		cfg:    cfg,
		lc:     lc,
		txSem:  make(chan struct{}, 1),
	}
}

// Name 链路名称
func (l *Link) Name() string {
	return l.name
}

// Transmit 发送一帧。超时返回错误，但底层写入仍在进行，
// 在其完成前链路保持忙碌状态。
func (l *Link) Transmit(ctx context.Context, p []byte) error {
	select {
	case l.txSem <- struct{}{}:
	default:
		return errors.NewCommonEdgeX(errors.KindServiceUnavailable,
			fmt.Sprintf("%s: transmit already in progress", l.name), nil)
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	done := make(chan error, 1)
	go func() {
		defer func() { <-l.txSem }()
		_, err := l.rw.Write(buf)
		done <- err
	}()

	timer := time.NewTimer(l.cfg.TxTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return errors.NewCommonEdgeX(errors.KindCommunicationError,
				fmt.Sprintf("%s: write", l.name), err)
		}
		l.lc.Debugf("%s tx: % X", l.name, p)
		return nil
	case <-timer.C:
		return errors.NewCommonEdgeX(errors.KindCommunicationError,
			fmt.Sprintf("%s: transmit timed out after %s", l.name, l.cfg.TxTimeout), nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy 是否有发送尚未完成
func (l *Link) Busy() bool {
	return len(l.txSem) > 0
}

// Receive 等待下一帧
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	frame, err := l.framer.Next(ctx)
	if err != nil {
		return nil, err
	}
	l.lc.Debugf("%s rx: % X", l.name, frame)
	return frame, nil
}

// Transact 发送请求并在 RxTimeout 内等待一帧应答
func (l *Link) Transact(ctx context.Context, req []byte) ([]byte, error) {
	if err := l.Transmit(ctx, req); err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, l.cfg.RxTimeout)
	defer cancel()
	resp, err := l.Receive(rctx)
	if err != nil {
		if rctx.Err() != nil && ctx.Err() == nil {
			return nil, errors.NewCommonEdgeX(errors.KindCommunicationError,
				fmt.Sprintf("%s: no response within %s", l.name, l.cfg.RxTimeout), err)
		}
		return nil, err
	}
	return resp, nil
}

// IsBusy 判断错误是否为链路忙
func IsBusy(err error) bool {
	return errors.Kind(err) == errors.KindServiceUnavailable
}
