// Package board 是一块继电器板的运行实例：持有寄存器、继电器、参数区和启动控制，
// 按运行模式把串口收到的每一帧交给文本命令、Modbus 从站或升级处理器。
//
// 同一时刻只有一帧在处理：帧处理期间持有 rx 锁，新帧和 MQTT 命令都要等待。
package board

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"

	"github.com/linjuya-lu/device_relay_go/internal/config"
	"github.com/linjuya-lu/device_relay_go/internal/console"
	"github.com/linjuya-lu/device_relay_go/internal/flash"
	"github.com/linjuya-lu/device_relay_go/internal/iap"
	"github.com/linjuya-lu/device_relay_go/internal/metrics"
	"github.com/linjuya-lu/device_relay_go/internal/modbus"
	"github.com/linjuya-lu/device_relay_go/internal/paramstore"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// Link 上位机链路
type Link interface {
	Transmit(ctx context.Context, p []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Deps 板卡依赖的外部资源
type Deps struct {
	Host       Link
	Flash      flash.Flash
	Relays     relay.Actuator
	BootFlag   iap.BootFlag
	Peripheral modbus.Transactor // 为空则不轮询外设
	Metrics    *metrics.Metrics  // 可为空
	Closers    []io.Closer
}

// Board 设备实例
type Board struct {
	cfg *config.BoardConfig
	lc  logger.LoggingClient
	d   Deps

	holding *modbus.RegisterFile
	input   *modbus.RegisterFile
	slave   *modbus.Slave
	console *console.Console
	store   *paramstore.Store
	updater *iap.Updater
	ctrl    *iap.Controller
	poller  *modbus.Poller

	rx           sync.Mutex
	mu           sync.RWMutex
	mode         iap.Mode
	params       []int32
	resetPending bool
}

// New 组装板卡；cfg 应已通过 Validate
func New(cfg *config.BoardConfig, d Deps, lc logger.LoggingClient) (*Board, error) {
	b := &Board{
		cfg:     cfg,
		lc:      lc,
		d:       d,
		holding: modbus.NewRegisterFile(cfg.Board.Registers),
		input:   modbus.NewRegisterFile(cfg.Board.Registers),
	}
	b.slave = modbus.NewSlave(cfg.Board.Station, b.holding, b.input, d.Relays, lc)

	store, err := paramstore.New(d.Flash, cfg.Params.Config, lc)
	if err != nil {
		return nil, fmt.Errorf("param store: %w", err)
	}
	b.store = store

	updater, err := iap.NewUpdater(d.Flash, cfg.Flash.AppBase, lc)
	if err != nil {
		return nil, err
	}
	b.updater = updater

	b.ctrl = iap.NewController(d.BootFlag, d.Flash, cfg.Flash.AppBase, lc)
	b.ctrl.SetHooks(iap.Hooks{
		Reset: func() { b.resetPending = true },
		Jump:  b.jump,
	})
	b.console = console.New(d.Relays, b.ctrl, cfg.Board.Info, lc)

	if d.Peripheral != nil && cfg.Poll.Enabled {
		b.poller = modbus.NewPoller(cfg.Poll, d.Peripheral, b.input, lc)
		b.poller.SetGate(func() bool { return b.Mode() == iap.ModeApplication })
	}

	if m := d.Metrics; m != nil {
		b.slave.SetObserver(m)
		b.updater.SetStatusHook(m.IAPStatus)
		b.store.SetHooks(paramstore.Hooks{OnSave: m.StoreSaved, OnLoad: m.StoreLoaded})
		if b.poller != nil {
			b.poller.SetHook(m.Polled)
		}
	}
	return b, nil
}

// Boot 上电流程：加载参数，读取启动标志，决定运行模式。
// 返回需要立即发给上位机的数据（进入升级模式时的通告）。
// 与帧处理和旁路修改互斥。
func (b *Board) Boot() [][]byte {
	b.rx.Lock()
	defer b.rx.Unlock()
	return b.bootLocked()
}

func (b *Board) bootLocked() [][]byte {
	b.loadParams()
	mode, err := b.ctrl.Boot()
	if err != nil {
		b.lc.Errorf("启动标志异常, 按应用模式运行: %v", err)
		b.jump(b.cfg.Flash.AppBase)
		return nil
	}
	if mode == iap.ModeUpdate {
		return b.enterUpdate()
	}
	return nil
}

func (b *Board) loadParams() {
	buf := make([]int32, b.store.Len())
	err := b.store.Load(buf)
	switch {
	case err == nil:
		b.lc.Infof("参数加载成功, 共 %d 个", len(buf))
	case paramstore.IsNotFound(err):
		b.lc.Warnf("参数区无有效数据, 使用默认值")
		copy(buf, b.cfg.Params.Defaults)
	default:
		b.lc.Errorf("参数加载失败, 使用默认值: %v", err)
		copy(buf, b.cfg.Params.Defaults)
	}
	b.mu.Lock()
	b.params = buf
	b.mu.Unlock()
}

func (b *Board) enterUpdate() [][]byte {
	b.setMode(iap.ModeUpdate)
	var out [][]byte
	for _, s := range b.updater.Enter() {
		out = append(out, s.Line())
	}
	return out
}

// jump 对应跳转到应用程序：丢弃升级缓冲区并切换到应用模式
func (b *Board) jump(uint32) {
	b.updater.Reset()
	b.setMode(iap.ModeApplication)
}

// reset 模拟系统复位：继电器断开后重新执行上电流程，调用方持有 rx
func (b *Board) reset() [][]byte {
	b.lc.Infof("系统复位")
	if err := b.d.Relays.SetAll(false); err != nil {
		b.lc.Errorf("复位时断开继电器失败: %v", err)
	}
	b.refreshRelayMetrics()
	return b.bootLocked()
}

func (b *Board) setMode(m iap.Mode) {
	b.mu.Lock()
	changed := b.mode != m
	b.mode = m
	b.mu.Unlock()
	if changed {
		b.lc.Infof("运行模式: %s", m)
	}
	if b.d.Metrics != nil {
		b.d.Metrics.SetUpdateMode(m == iap.ModeUpdate)
	}
}

// Mode 当前运行模式
func (b *Board) Mode() iap.Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// HandleFrame 处理一帧完整的接收数据，返回按顺序发送的应答（可能为空）
func (b *Board) HandleFrame(frame []byte) [][]byte {
	b.rx.Lock()
	defer b.rx.Unlock()
	return b.handleLocked(frame)
}

func (b *Board) handleLocked(frame []byte) [][]byte {
	var out [][]byte
	if b.Mode() == iap.ModeUpdate {
		status, done := b.updater.Handle(frame)
		if status != "" {
			out = append(out, status.Line())
		}
		if done {
			b.ctrl.Jump()
		}
		return out
	}

	if console.IsText(frame) {
		if reply, ok := b.console.Handle(frame); ok && len(reply) > 0 {
			out = append(out, reply)
		}
	} else if reply, ok := b.slave.Handle(frame); ok {
		out = append(out, reply)
	}
	b.refreshRelayMetrics()

	if b.resetPending {
		b.resetPending = false
		out = append(out, b.reset()...)
	}
	return out
}

// Command 执行一条文本命令（来自 MQTT 等旁路），与串口帧互斥
func (b *Board) Command(line string) ([]byte, error) {
	b.rx.Lock()
	defer b.rx.Unlock()
	if b.Mode() == iap.ModeUpdate {
		return nil, errors.NewCommonEdgeX(errors.KindServiceUnavailable, "board is in update mode", nil)
	}
	frame := []byte(line + "\r\n")
	if !console.IsText(frame) {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid, fmt.Sprintf("not a console command: %q", line), nil)
	}
	var out []byte
	for _, r := range b.handleLocked(frame) {
		out = append(out, r...)
	}
	return out, nil
}

func (b *Board) refreshRelayMetrics() {
	if b.d.Metrics != nil {
		b.d.Metrics.SetRelays(relay.StatusWord(b.d.Relays))
	}
}

// Run 启动板卡：执行上电流程，然后循环接收上位机数据，直到 ctx 结束
func (b *Board) Run(ctx context.Context) error {
	return b.Serve(ctx, b.Boot())
}

// Serve 发送 Boot 返回的通告后循环接收上位机数据，直到 ctx 结束。
// 调用方先同步执行 Boot，之后的读写都能看到已加载的参数。
func (b *Board) Serve(ctx context.Context, announce [][]byte) error {
	b.transmit(ctx, announce)
	if b.poller != nil {
		go b.poller.Run(ctx)
	}
	for {
		frame, err := b.d.Host.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.lc.Errorf("串口接收失败: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		b.transmit(ctx, b.HandleFrame(frame))
	}
}

func (b *Board) transmit(ctx context.Context, replies [][]byte) {
	for _, r := range replies {
		if err := b.d.Host.Transmit(ctx, r); err != nil {
			b.lc.Errorf("发送失败: %v", err)
		}
	}
}

// Close 释放端口和 GPIO
func (b *Board) Close() error {
	var firstErr error
	for _, c := range b.d.Closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
