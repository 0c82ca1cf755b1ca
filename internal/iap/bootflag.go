package iap

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// UpdateRequest 备份寄存器中的升级请求标志
const UpdateRequest uint16 = 0xA5A5

// BootFlag 复位后仍保留的 16 位启动标志
type BootFlag interface {
	Read() (uint16, error)
	Write(v uint16) error
}

// TakeUpdateRequest 读取标志；若为升级请求则立即清零，保证一次请求只进入一次升级模式
func TakeUpdateRequest(b BootFlag) (bool, error) {
	v, err := b.Read()
	if err != nil {
		return false, err
	}
	if v != UpdateRequest {
		return false, nil
	}
	if err := b.Write(0); err != nil {
		return false, fmt.Errorf("clear boot flag: %w", err)
	}
	return true, nil
}

// FileFlag 用一个 2 字节文件模拟备份寄存器，文件不存在时读为 0
type FileFlag struct {
	Path string
	mu   sync.Mutex
}

// NewFileFlag 返回基于 path 的标志
func NewFileFlag(path string) *FileFlag {
	return &FileFlag{Path: path}
}

func (f *FileFlag) Read() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) < 2 {
		return 0, nil
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (f *FileFlag) Write(v uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return os.WriteFile(f.Path, b[:], 0o644)
}

// MemoryFlag 进程内的标志
type MemoryFlag struct {
	mu sync.Mutex
	v  uint16
}

func (m *MemoryFlag) Read() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, nil
}

func (m *MemoryFlag) Write(v uint16) error {
	m.mu.Lock()
	m.v = v
	m.mu.Unlock()
	return nil
}
