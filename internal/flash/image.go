package flash

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// Image 是 Flash 的内存镜像，可选地写透到一个文件，用来在重启之间保留内容。
type Image struct {
	mu   sync.RWMutex
	geo  Geometry
	mem  []byte
	file *os.File
}

// NewMemory 返回一个全部擦除的纯内存 Flash
func NewMemory(geo Geometry) (*Image, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	mem := make([]byte, geo.Size)
	fill(mem)
	return &Image{geo: geo, mem: mem}, nil
}

// Open 打开（不存在则创建）一个文件作为 Flash 镜像。
// 新建的文件填充 0xFF；已有文件长度必须与 geo.Size 一致。
func Open(path string, geo Geometry) (*Image, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash image %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat flash image %s: %w", path, err)
	}

	mem := make([]byte, geo.Size)
	switch st.Size() {
	case 0:
		fill(mem)
		if _, err := f.WriteAt(mem, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("init flash image %s: %w", path, err)
		}
	case int64(geo.Size):
		if _, err := io.ReadFull(f, mem); err != nil {
			f.Close()
			return nil, fmt.Errorf("read flash image %s: %w", path, err)
		}
	default:
		f.Close()
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("flash image %s has %d bytes, expected %d", path, st.Size(), geo.Size), nil)
	}
	return &Image{geo: geo, mem: mem, file: f}, nil
}

// Close 关闭底层文件（纯内存镜像直接返回）
func (m *Image) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Geometry 实现 Flash
func (m *Image) Geometry() Geometry {
	return m.geo
}

// ErasePages 实现 Flash
func (m *Image) ErasePages(first, count int) error {
	if first < 0 || count < 0 || first+count > m.geo.PageCount() {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("erase pages [%d, %d) outside [0, %d)", first, first+count, m.geo.PageCount()), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := uint32(first) * m.geo.PageSize
	end := start + uint32(count)*m.geo.PageSize
	fill(m.mem[start:end])
	return m.persist(start, end)
}

// ProgramDoubleWord 实现 Flash
func (m *Image) ProgramDoubleWord(addr uint32, value uint64) error {
	if addr%ProgramUnit != 0 {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("program address 0x%08X is not %d-byte aligned", addr, ProgramUnit), nil)
	}
	if !m.geo.Contains(addr, ProgramUnit) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("program address 0x%08X outside flash", addr), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	off := addr - m.geo.Base
	cell := m.mem[off : off+ProgramUnit]
	for _, b := range cell {
		if b != ErasedByte {
			return errors.NewCommonEdgeX(errors.KindServerError,
				fmt.Sprintf("double word at 0x%08X is not erased", addr), nil)
		}
	}
	binary.LittleEndian.PutUint64(cell, value)
	return m.persist(off, off+ProgramUnit)
}

// Read 实现 Flash
func (m *Image) Read(addr uint32, p []byte) error {
	if !m.geo.Contains(addr, uint32(len(p))) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("read [0x%08X, +%d) outside flash", addr, len(p)), nil)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	off := addr - m.geo.Base
	copy(p, m.mem[off:])
	return nil
}

// Patch 绕过 NOR 规则直接改写字节，仅用于诊断和故障注入
func (m *Image) Patch(addr uint32, data []byte) error {
	if !m.geo.Contains(addr, uint32(len(data))) {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("patch [0x%08X, +%d) outside flash", addr, len(data)), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := addr - m.geo.Base
	copy(m.mem[off:], data)
	return m.persist(off, off+uint32(len(data)))
}

// persist 把 [start, end) 写回文件，调用方持有写锁
func (m *Image) persist(start, end uint32) error {
	if m.file == nil {
		return nil
	}
	if _, err := m.file.WriteAt(m.mem[start:end], int64(start)); err != nil {
		return errors.NewCommonEdgeX(errors.KindServerError, "write flash image", err)
	}
	return nil
}

func fill(b []byte) {
	for i := range b {
		b[i] = ErasedByte
	}
}
