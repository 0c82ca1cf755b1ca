// Package gpio 通过 sysfs 操作输出引脚（继电器、RS-485 DE/RE）。
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultRoot sysfs GPIO 根目录
const DefaultRoot = "/sys/class/gpio"

// Pin 一个已导出并设置为输出的引脚
type Pin struct {
	num   int
	value *os.File
}

// OpenOutput 导出引脚、设置为输出并拉到 initial 电平
func OpenOutput(root string, num int, initial bool) (*Pin, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := exportGPIO(root, num); err != nil {
		return nil, fmt.Errorf("export GPIO %d failed: %w", num, err)
	}
	if err := setGPIODirection(root, num, "out"); err != nil {
		return nil, fmt.Errorf("set GPIO %d direction: %w", num, err)
	}
	f, err := openGPIOValue(root, num)
	if err != nil {
		return nil, fmt.Errorf("open GPIO %d value: %w", num, err)
	}
	p := &Pin{num: num, value: f}
	if err := p.Set(initial); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// Num 引脚编号
func (p *Pin) Num() int {
	return p.num
}

// Set 写入电平
func (p *Pin) Set(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	if _, err := p.value.WriteAt([]byte(v), 0); err != nil {
		return fmt.Errorf("GPIO %d write %s: %w", p.num, v, err)
	}
	return nil
}

// Close 关闭 value 节点
func (p *Pin) Close() error {
	return p.value.Close()
}

// -------- sysfs 辅助函数 --------
func exportGPIO(root string, num int) error {
	if _, err := os.Stat(filepath.Join(root, fmt.Sprintf("gpio%d", num))); err == nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(root, "export"), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, _ = f.WriteString(fmt.Sprint(num)) // 若已导出则忽略错误
	// 等待 udev 创建节点
	time.Sleep(100 * time.Millisecond)
	return nil
}

func setGPIODirection(root string, num int, dir string) error {
	path := filepath.Join(root, fmt.Sprintf("gpio%d", num), "direction")
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(dir)
	return err
}

func openGPIOValue(root string, num int) (*os.File, error) {
	path := filepath.Join(root, fmt.Sprintf("gpio%d", num), "value")
	return os.OpenFile(path, os.O_RDWR, 0)
}
