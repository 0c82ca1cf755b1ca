// Package flash 模拟片上 NOR Flash：按页擦除、按双字（8 字节）编程，
// 只能向已擦除（全 0xFF）的双字写入。
package flash

import (
	"fmt"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

const (
	// ProgramUnit 最小编程单位（字节）
	ProgramUnit = 8
	// ErasedByte 擦除后的字节值
	ErasedByte byte = 0xFF
	// ErasedWord 擦除后的 32 位字
	ErasedWord uint32 = 0xFFFFFFFF
)

// Geometry 描述 Flash 的地址空间
type Geometry struct {
	Base     uint32 `yaml:"base"`     // 起始地址，例如 0x08000000
	Size     uint32 `yaml:"size"`     // 总容量（字节）
	PageSize uint32 `yaml:"pageSize"` // 页大小（字节）
}

// End 返回 Flash 结束地址（不含）
func (g Geometry) End() uint32 {
	return g.Base + g.Size
}

// PageCount 返回总页数
func (g Geometry) PageCount() int {
	return int(g.Size / g.PageSize)
}

// Contains 判断 [addr, addr+n) 是否完全落在 Flash 内
func (g Geometry) Contains(addr, n uint32) bool {
	if addr < g.Base || addr > g.End() {
		return false
	}
	return uint64(addr)+uint64(n) <= uint64(g.End())
}

// PageOf 返回 addr 所在页的索引
func (g Geometry) PageOf(addr uint32) (int, error) {
	if !g.Contains(addr, 1) {
		return 0, errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("address 0x%08X outside flash [0x%08X, 0x%08X)", addr, g.Base, g.End()), nil)
	}
	return int((addr - g.Base) / g.PageSize), nil
}

// PageAddr 返回第 page 页的起始地址
func (g Geometry) PageAddr(page int) uint32 {
	return g.Base + uint32(page)*g.PageSize
}

// Validate 检查几何参数是否自洽
func (g Geometry) Validate() error {
	switch {
	case g.Size == 0 || g.PageSize == 0:
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "flash size and page size must be non-zero", nil)
	case g.PageSize%ProgramUnit != 0:
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("page size %d is not a multiple of %d", g.PageSize, ProgramUnit), nil)
	case g.Size%g.PageSize != 0:
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("flash size %d is not a whole number of %d-byte pages", g.Size, g.PageSize), nil)
	case uint64(g.Base)+uint64(g.Size) > 1<<32:
		return errors.NewCommonEdgeX(errors.KindContractInvalid, "flash range overflows 32-bit address space", nil)
	}
	return nil
}

// Flash 是参数区和 IAP 共同依赖的 Flash 控制器接口。
// 所有操作都是同步阻塞的，失败不重试。
type Flash interface {
	Geometry() Geometry
	// ErasePages 擦除从 first 开始的 count 页
	ErasePages(first, count int) error
	// ProgramDoubleWord 在 8 字节对齐地址写入一个双字（小端）
	ProgramDoubleWord(addr uint32, value uint64) error
	// Read 从 addr 开始读取 len(p) 字节
	Read(addr uint32, p []byte) error
}
