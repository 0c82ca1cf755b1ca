package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/spf13/cobra"

	"github.com/linjuya-lu/device_relay_go/internal/config"
	"github.com/linjuya-lu/device_relay_go/internal/serial"
)

// linkFlags 串口相关的公共参数
type linkFlags struct {
	device   string
	portType string
	baudrate int
	dePin    int
	timeout  time.Duration
	logLevel string
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.device, "port", "", "Serial device, e.g. /dev/ttyUSB0 (required)")
	cmd.Flags().StringVar(&f.portType, "type", "uart", "Port type: uart, rs232 or rs485")
	cmd.Flags().IntVar(&f.baudrate, "baud", 115200, "Baud rate")
	cmd.Flags().IntVar(&f.dePin, "de-pin", 0, "RS-485 DE GPIO number")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 3*time.Second, "Reply timeout per frame (covers the application erase)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "INFO", "Log level: TRACE, DEBUG, INFO, WARN or ERROR")
	_ = cmd.MarkFlagRequired("port")
}

func (f *linkFlags) portConfig() config.Port {
	return config.Port{
		Name:      "host",
		Device:    f.device,
		Type:      f.portType,
		Baudrate:  f.baudrate,
		DEPin:     f.dePin,
		TimeoutMs: 20,
	}
}

// open 打开串口并返回链路和关闭函数
func (f *linkFlags) open() (*serial.Link, logger.LoggingClient, func() error, error) {
	lc := logger.NewClient("iapflash", f.logLevel)
	p, err := serial.NewPort(f.portConfig())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := p.Open(); err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", f.device, err)
	}
	link := serial.NewLink("host", p, serial.LinkConfig{
		TxTimeout: f.timeout,
		RxTimeout: f.timeout,
	}, lc)
	return link, lc, p.Close, nil
}

// parseAddress 接受十进制或 0x 前缀的十六进制
func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
