// Package serial 提供串口收发：tarm/serial 打开的 UART / RS-232 / RS-485 端口，
// 按空闲间隔切分的帧接收，以及同一时刻只允许一个发送请求的 Link。
package serial

import (
	"fmt"
	"io"

	"github.com/linjuya-lu/device_relay_go/internal/config"
)

// Port 是整个 serial 包对外暴露的通用串口接口。
// Read 在读超时到期且没有数据时返回 0 字节，上层据此判定线路空闲。
type Port interface {
	io.ReadWriteCloser
	Open() error
	Name() string
}

// NewPort 根据配置创建对应的串口实现（UART / RS-485 / RS-232）
func NewPort(cfg config.Port) (Port, error) {
	switch cfg.Type {
	case "uart", "rs232":
		return NewUARTPort(cfg), nil
	case "rs485":
		return NewRS485Port(cfg), nil
	default:
		return nil, fmt.Errorf("unknown port type %s", cfg.Type)
	}
}
