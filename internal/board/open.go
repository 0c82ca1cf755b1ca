package board

import (
	"fmt"
	"io"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/config"
	"github.com/linjuya-lu/device_relay_go/internal/flash"
	"github.com/linjuya-lu/device_relay_go/internal/iap"
	"github.com/linjuya-lu/device_relay_go/internal/metrics"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
	"github.com/linjuya-lu/device_relay_go/internal/serial"
)

// Open 按配置打开串口、Flash 映像、继电器 GPIO 和启动标志，返回组装好的板卡
func Open(cfg *config.BoardConfig, m *metrics.Metrics, lc logger.LoggingClient) (_ *Board, err error) {
	var closers []io.Closer
	defer func() {
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
		}
	}()

	d := Deps{Metrics: m}

	if cfg.Flash.Image != "" {
		img, err := flash.Open(cfg.Flash.Image, cfg.Flash.Geometry)
		if err != nil {
			return nil, fmt.Errorf("open flash image: %w", err)
		}
		closers = append(closers, img)
		d.Flash = img
	} else {
		img, err := flash.NewMemory(cfg.Flash.Geometry)
		if err != nil {
			return nil, err
		}
		d.Flash = img
	}

	if len(cfg.Board.Relays.Pins) > 0 {
		g, err := relay.OpenGPIO(cfg.Board.Relays, lc)
		if err != nil {
			return nil, err
		}
		closers = append(closers, g)
		d.Relays = g
	} else {
		lc.Warnf("未配置继电器引脚, 使用内存继电器")
		d.Relays = relay.NewBank()
	}

	if cfg.BootFlag.Path != "" {
		d.BootFlag = iap.NewFileFlag(cfg.BootFlag.Path)
	} else {
		d.BootFlag = &iap.MemoryFlag{}
	}

	linkCfg := serial.LinkConfig{
		TxTimeout: time.Duration(cfg.Board.TxTimeoutMs) * time.Millisecond,
		RxTimeout: time.Duration(cfg.Board.RxTimeoutMs) * time.Millisecond,
	}
	openLink := func(name string) (*serial.Link, error) {
		pc, ok := cfg.PortByName(name)
		if !ok {
			return nil, fmt.Errorf("port %q not configured", name)
		}
		p, err := serial.NewPort(pc)
		if err != nil {
			return nil, err
		}
		if err := p.Open(); err != nil {
			return nil, err
		}
		closers = append(closers, p)
		lc.Infof("串口 %s (%s, %s, %d bps) 已打开", pc.Name, pc.Device, pc.Type, pc.Baudrate)
		return serial.NewLink(pc.Name, p, linkCfg, lc), nil
	}

	host, err := openLink(cfg.Board.HostPort)
	if err != nil {
		return nil, err
	}
	d.Host = host
	if cfg.Poll.Enabled {
		peripheral, err := openLink(cfg.Board.PeripheralPort)
		if err != nil {
			return nil, err
		}
		d.Peripheral = peripheral
	}

	d.Closers = closers
	return New(cfg, d, lc)
}
