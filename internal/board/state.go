package board

import (
	"fmt"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"

	"github.com/linjuya-lu/device_relay_go/internal/iap"
	"github.com/linjuya-lu/device_relay_go/internal/modbus"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// Snapshot 某一时刻的板卡状态
type Snapshot struct {
	Mode    string   `json:"mode"`
	Relays  []bool   `json:"relays"`
	Holding []uint16 `json:"holding"`
	Input   []uint16 `json:"input"`
	Params  []int32  `json:"params"`
}

// Holding 保持寄存器
func (b *Board) Holding() *modbus.RegisterFile {
	return b.holding
}

// Input 输入寄存器（外设轮询结果和继电器镜像）
func (b *Board) Input() *modbus.RegisterFile {
	return b.input
}

// Relays 继电器
func (b *Board) Relays() relay.Actuator {
	return b.d.Relays
}

// SetRelay 设置单路继电器，与串口帧互斥
func (b *Board) SetRelay(index int, on bool) error {
	if !relay.Valid(index) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid, fmt.Sprintf("relay K%d does not exist", index), nil)
	}
	b.rx.Lock()
	defer b.rx.Unlock()
	err := b.d.Relays.SetOutput(index, on)
	b.refreshRelayMetrics()
	return err
}

// Params 返回参数的拷贝
func (b *Board) Params() []int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]int32, len(b.params))
	copy(out, b.params)
	return out
}

// SetParam 修改一个参数并立即保存到两页 Flash。保存失败时内存中的值不变。
// 读取、修改、保存在同一把 rx 锁内完成，并发调用不会互相覆盖。
func (b *Board) SetParam(index int, v int32) error {
	b.rx.Lock()
	defer b.rx.Unlock()
	values := b.Params()
	if index < 0 || index >= len(values) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("parameter %d out of range [0, %d)", index, len(values)), nil)
	}
	values[index] = v
	return b.saveLocked(values)
}

// SaveParams 保存整组参数
func (b *Board) SaveParams(values []int32) error {
	b.rx.Lock()
	defer b.rx.Unlock()
	return b.saveLocked(values)
}

// saveLocked 调用方须持有 rx
func (b *Board) saveLocked(values []int32) error {
	if b.Mode() == iap.ModeUpdate {
		return errors.NewCommonEdgeX(errors.KindServiceUnavailable, "board is in update mode", nil)
	}
	if err := b.store.Save(values); err != nil {
		return err
	}
	b.mu.Lock()
	b.params = append(b.params[:0], values...)
	b.mu.Unlock()
	return nil
}

// Snapshot 采集当前状态
func (b *Board) Snapshot() Snapshot {
	s := Snapshot{
		Mode:    b.Mode().String(),
		Relays:  make([]bool, relay.Count),
		Holding: b.holding.Snapshot(),
		Input:   b.input.Snapshot(),
		Params:  b.Params(),
	}
	for i := range s.Relays {
		s.Relays[i] = b.d.Relays.GetOutput(i + 1)
	}
	return s
}
