package modbus

import (
	"fmt"
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// DefaultRegisterCount 寄存器数组大小
const DefaultRegisterCount = 58

// RegisterFile 固定长度的 16 位寄存器数组，创建后不会改变长度
type RegisterFile struct {
	mu   sync.RWMutex
	regs []uint16
}

// NewRegisterFile 创建 n 个全零寄存器
func NewRegisterFile(n int) *RegisterFile {
	if n <= 0 {
		n = DefaultRegisterCount
	}
	return &RegisterFile{regs: make([]uint16, n)}
}

// Len 寄存器个数
func (r *RegisterFile) Len() int {
	return len(r.regs)
}

// InRange 判断 [start, start+count) 是否落在寄存器数组内
func (r *RegisterFile) InRange(start, count int) bool {
	return start >= 0 && count >= 0 && start+count <= len(r.regs)
}

// Get 读取单个寄存器
func (r *RegisterFile) Get(addr int) (uint16, error) {
	if !r.InRange(addr, 1) {
		return 0, outOfRange(addr, 1, len(r.regs))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regs[addr], nil
}

// Read 拷贝出一段寄存器
func (r *RegisterFile) Read(start, count int) ([]uint16, error) {
	if !r.InRange(start, count) {
		return nil, outOfRange(start, count, len(r.regs))
	}
	out := make([]uint16, count)
	r.mu.RLock()
	copy(out, r.regs[start:start+count])
	r.mu.RUnlock()
	return out, nil
}

// Write 写入一段寄存器；越界时不做任何修改
func (r *RegisterFile) Write(start int, values []uint16) error {
	if !r.InRange(start, len(values)) {
		return outOfRange(start, len(values), len(r.regs))
	}
	r.mu.Lock()
	copy(r.regs[start:], values)
	r.mu.Unlock()
	return nil
}

// Set 写入单个寄存器
func (r *RegisterFile) Set(addr int, v uint16) error {
	return r.Write(addr, []uint16{v})
}

// Snapshot 返回全部寄存器的拷贝
func (r *RegisterFile) Snapshot() []uint16 {
	out, _ := r.Read(0, len(r.regs))
	return out
}

func outOfRange(start, count, n int) error {
	return errors.NewCommonEdgeX(errors.KindContractInvalid,
		fmt.Sprintf("register range %d+%d exceeds %d", start, count, n), nil)
}
