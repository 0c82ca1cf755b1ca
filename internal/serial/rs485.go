package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"

	"github.com/linjuya-lu/device_relay_go/internal/config"
	"github.com/linjuya-lu/device_relay_go/internal/gpio"
)

// RS485Port 半双工 RS-485：写入时拉高 DE，发送完毕后切回接收
type RS485Port struct {
	cfg  config.Port
	port *serial.Port
	de   *gpio.Pin
}

// NewRS485Port 构造 RS485Port 实例
func NewRS485Port(cfg config.Port) *RS485Port {
	return &RS485Port{cfg: cfg}
}

// Open 导出 DE 引脚（默认低电平，接收）并打开串口
func (r *RS485Port) Open() error {
	de, err := gpio.OpenOutput(r.cfg.GPIORoot, r.cfg.DEPin, false)
	if err != nil {
		return err
	}
	r.de = de

	p, err := openTarm(r.cfg)
	if err != nil {
		r.de.Close()
		return fmt.Errorf("open serial %s failed: %w", r.cfg.Device, err)
	}
	r.port = p
	return nil
}

// Close 关闭串口和 GPIO
func (r *RS485Port) Close() error {
	var firstErr error
	if r.port != nil {
		if err := r.port.Close(); err != nil {
			firstErr = err
		}
	}
	if r.de != nil {
		if err := r.de.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Read 实现 io.Reader
func (r *RS485Port) Read(p []byte) (int, error) {
	return r.port.Read(p)
}

// Write 切到发送 → 写整帧 → 等待移位完成 → 切回接收
func (r *RS485Port) Write(frame []byte) (int, error) {
	if err := r.de.Set(true); err != nil {
		return 0, fmt.Errorf("GPIO DE high failed: %w", err)
	}
	time.Sleep(time.Millisecond)

	n, err := r.port.Write(frame)
	if err != nil {
		// 出错切回接收
		_ = r.de.Set(false)
		return n, fmt.Errorf("serial write failed: %w", err)
	}
	// 等待所有比特发出 (10 bits/byte)
	time.Sleep(time.Duration(n*10) * time.Second / time.Duration(r.cfg.Baudrate))

	if err := r.de.Set(false); err != nil {
		return n, fmt.Errorf("GPIO DE low failed: %w", err)
	}
	return n, nil
}

// Name 返回端口名称
func (r *RS485Port) Name() string {
	return r.cfg.Name
}
