package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
)

// Transactor 发送一帧请求并等待一帧应答
type Transactor interface {
	Transact(ctx context.Context, req []byte) ([]byte, error)
}

// PollConfig 主站轮询参数
type PollConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Station    uint8  `yaml:"station"`
	Function   uint8  `yaml:"function"`
	Start      uint16 `yaml:"start"`
	Count      uint16 `yaml:"count"`
	Offset     int    `yaml:"offset"`
	IntervalMs int    `yaml:"intervalMs"`
}

// Validate 检查轮询结果能否放进 n 个输入寄存器
func (c PollConfig) Validate(n int) error {
	if c.Function != FuncReadHolding && c.Function != FuncReadInput {
		return fmt.Errorf("poll: unsupported function 0x%02X", c.Function)
	}
	if c.Count == 0 || c.Count > maxReadCount {
		return fmt.Errorf("poll: invalid count %d", c.Count)
	}
	if c.Offset < 0 || c.Offset+int(c.Count) > n {
		return fmt.Errorf("poll: offset %d + count %d exceeds %d registers", c.Offset, c.Count, n)
	}
	if c.IntervalMs <= 0 {
		return fmt.Errorf("poll: interval must be positive")
	}
	return nil
}

// Poller 周期性地向一个外设发送固定的读请求，把结果写入输入寄存器
type Poller struct {
	cfg    PollConfig
	link   Transactor
	input  *RegisterFile
	lc     logger.LoggingClient
	req    []byte
	onPoll func(error)
	gate   func() bool
}

// NewPoller cfg 应已通过 Validate
func NewPoller(cfg PollConfig, link Transactor, input *RegisterFile, lc logger.LoggingClient) *Poller {
	return &Poller{
		cfg:   cfg,
		link:  link,
		input: input,
		lc:    lc,
		req:   ReadRequest(cfg.Station, cfg.Function, cfg.Start, cfg.Count),
	}
}

// SetHook 每次轮询结束后调用，err 为 nil 表示成功
func (p *Poller) SetHook(fn func(error)) {
	p.onPoll = fn
}

// SetGate 设置轮询开关，返回 false 时跳过本轮
func (p *Poller) SetGate(fn func() bool) {
	p.gate = fn
}

// Run 按固定周期轮询，直到 ctx 结束
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(p.cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.gate == nil || p.gate() {
			if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.lc.Warnf("外设 %d 轮询失败: %v", p.cfg.Station, err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce 执行一次请求；失败时输入寄存器保持不变
func (p *Poller) PollOnce(ctx context.Context) (err error) {
	defer func() {
		if p.onPoll != nil {
			p.onPoll(err)
		}
	}()
	resp, err := p.link.Transact(ctx, p.req)
	if err != nil {
		return err
	}
	values, err := ParseReadResponse(p.req, resp)
	if err != nil {
		return err
	}
	return p.input.Write(p.cfg.Offset, values)
}

// ParseReadResponse 校验 0x03/0x04 应答（站地址、功能码、字节数、CRC）并取出寄存器值
func ParseReadResponse(req, resp []byte) ([]uint16, error) {
	if len(req) != fixedRequestLength {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid, "not a read request", nil)
	}
	if len(resp) < 5 {
		return nil, commErr("short response: % X", resp)
	}
	if !checksum.VerifyCRC16(resp) {
		return nil, commErr("crc mismatch: % X", resp)
	}
	if resp[0] != req[0] {
		return nil, commErr("unexpected station %d", resp[0])
	}
	if resp[1] == req[1]|exceptionFlag {
		return nil, commErr("exception 0x%02X", resp[2])
	}
	if resp[1] != req[1] {
		return nil, commErr("unexpected function 0x%02X", resp[1])
	}
	want := 2 * int(binary.BigEndian.Uint16(req[4:]))
	if int(resp[2]) != want || len(resp) != 5+want {
		return nil, commErr("byte count %d, want %d", resp[2], want)
	}
	return decodeRegisters(resp[3 : 3+want]), nil
}

func commErr(format string, args ...interface{}) error {
	return errors.NewCommonEdgeX(errors.KindCommunicationError, fmt.Sprintf(format, args...), nil)
}
