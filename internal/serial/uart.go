package serial

import (
	"fmt"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/linjuya-lu/device_relay_go/internal/config"
)

// UARTPort 全双工串口（UART / RS-232）
type UARTPort struct {
	cfg    config.Port
	handle *serial.Port
}

func NewUARTPort(cfg config.Port) *UARTPort {
	return &UARTPort{cfg: cfg}
}

// tarmConfig 把端口配置转换为 tarm 配置，数据位固定 8 位
func tarmConfig(cfg config.Port) (*serial.Config, error) {
	sc := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baudrate,
		Size:        8,
		ReadTimeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
	}
	switch strings.ToUpper(cfg.Parity) {
	case "", "N":
		sc.Parity = serial.ParityNone
	case "E":
		sc.Parity = serial.ParityEven
	case "O":
		sc.Parity = serial.ParityOdd
	default:
		return nil, fmt.Errorf("port %s: unsupported parity %q", cfg.Name, cfg.Parity)
	}
	switch cfg.StopBits {
	case 0, 1:
		sc.StopBits = serial.Stop1
	case 2:
		sc.StopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("port %s: unsupported stop bits %d", cfg.Name, cfg.StopBits)
	}
	return sc, nil
}

func openTarm(cfg config.Port) (*serial.Port, error) {
	sc, err := tarmConfig(cfg)
	if err != nil {
		return nil, err
	}
	return serial.OpenPort(sc)
}

func (u *UARTPort) Open() error {
	p, err := openTarm(u.cfg)
	if err != nil {
		return fmt.Errorf("open UART %s failed: %w", u.cfg.Device, err)
	}
	u.handle = p
	return nil
}

func (u *UARTPort) Close() error {
	if u.handle != nil {
		return u.handle.Close()
	}
	return nil
}

func (u *UARTPort) Read(p []byte) (int, error) {
	return u.handle.Read(p)
}

func (u *UARTPort) Write(p []byte) (int, error) {
	n, err := u.handle.Write(p)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	return n, nil
}

// Name 返回逻辑名称
func (u *UARTPort) Name() string {
	return u.cfg.Name
}
