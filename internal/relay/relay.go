// Package relay 提供继电器输出（K1..K8）的逻辑控制接口。
package relay

import "fmt"

// Count 继电器路数
const Count = 8

// Actuator 按编号 1..Count 控制输出；编号越界时 Set 忽略、Get 返回 false。
type Actuator interface {
	SetOutput(index int, on bool) error
	GetOutput(index int) bool
	SetAll(on bool) error
}

// Valid 判断编号是否在 1..Count
func Valid(index int) bool {
	return index >= 1 && index <= Count
}

// Toggle 翻转单路输出
func Toggle(a Actuator, index int) error {
	if !Valid(index) {
		return nil
	}
	return a.SetOutput(index, !a.GetOutput(index))
}

// SetMask 按位掩码设置多路输出（bit0=K1 ... bit7=K8）
func SetMask(a Actuator, mask uint8, on bool) error {
	for i := 0; i < Count; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		if err := a.SetOutput(i+1, on); err != nil {
			return err
		}
	}
	return nil
}

// StatusWord 返回所有输出的位图（bit0=K1）
func StatusWord(a Actuator) uint16 {
	var w uint16
	for i := 1; i <= Count; i++ {
		if a.GetOutput(i) {
			w |= 1 << (i - 1)
		}
	}
	return w
}

// StatusLine 生成 "Relay: K1:ON K2:OFF ..." 形式的状态行
func StatusLine(a Actuator) string {
	s := "Relay:"
	for i := 1; i <= Count; i++ {
		st := "OFF"
		if a.GetOutput(i) {
			st = "ON"
		}
		s += fmt.Sprintf(" K%d:%s", i, st)
	}
	return s
}
