package relay

import "sync"

// Bank 是纯内存实现，用于测试和没有 GPIO 的环境
type Bank struct {
	mu    sync.RWMutex
	state [Count]bool
	// Writes 记录 SetOutput 被调用的次数（包括 SetAll 展开的每一路）
	Writes int
}

// NewBank 返回全部断开的 Bank
func NewBank() *Bank {
	return &Bank{}
}

// SetOutput 实现 Actuator
func (b *Bank) SetOutput(index int, on bool) error {
	if !Valid(index) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[index-1] = on
	b.Writes++
	return nil
}

// GetOutput 实现 Actuator
func (b *Bank) GetOutput(index int) bool {
	if !Valid(index) {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state[index-1]
}

// SetAll 实现 Actuator
func (b *Bank) SetAll(on bool) error {
	for i := 1; i <= Count; i++ {
		if err := b.SetOutput(i, on); err != nil {
			return err
		}
	}
	return nil
}
