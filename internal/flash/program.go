package flash

import (
	"encoding/binary"
	"fmt"
)

// ErasePageAt 擦除 addr 所在的整页
func ErasePageAt(f Flash, addr uint32) error {
	page, err := f.Geometry().PageOf(addr)
	if err != nil {
		return err
	}
	return f.ErasePages(page, 1)
}

// EraseRange 擦除覆盖 [addr, addr+n) 的所有页（向上取整到整页）
func EraseRange(f Flash, addr, n uint32) error {
	g := f.Geometry()
	first, err := g.PageOf(addr)
	if err != nil {
		return err
	}
	offset := addr - g.PageAddr(first)
	pages := int((offset + n + g.PageSize - 1) / g.PageSize)
	if first+pages > g.PageCount() {
		pages = g.PageCount() - first
	}
	return f.ErasePages(first, pages)
}

// Program 以双字为单位把 data 写入 addr，最后不足 8 字节的部分用 0xFF 补齐。
// 返回已成功写入的字节数；遇到第一次编程失败立即停止。
func Program(f Flash, addr uint32, data []byte) (int, error) {
	var unit [ProgramUnit]byte
	for i := 0; i < len(data); i += ProgramUnit {
		n := copy(unit[:], data[i:])
		for j := n; j < ProgramUnit; j++ {
			unit[j] = ErasedByte
		}
		at := addr + uint32(i)
		if err := f.ProgramDoubleWord(at, binary.LittleEndian.Uint64(unit[:])); err != nil {
			return i, fmt.Errorf("program 0x%08X: %w", at, err)
		}
	}
	return len(data), nil
}

// ReadWords 从 addr 开始读取 n 个小端 32 位字
func ReadWords(f Flash, addr uint32, n int) ([]uint32, error) {
	raw := make([]byte, 4*n)
	if err := f.Read(addr, raw); err != nil {
		return nil, err
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return words, nil
}
