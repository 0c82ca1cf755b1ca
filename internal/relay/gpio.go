package relay

import (
	"fmt"
	"sync"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/gpio"
)

// GPIOConfig 每路继电器对应的 GPIO 编号（K1..K8 顺序）
type GPIOConfig struct {
	Root      string `yaml:"root"`
	Pins      []int  `yaml:"pins"`
	ActiveLow bool   `yaml:"activeLow"`
}

// GPIO 通过 sysfs 驱动继电器，初始全部断开
type GPIO struct {
	cfg   GPIOConfig
	mu    sync.Mutex
	pins  [Count]*gpio.Pin
	state [Count]bool
}

// OpenGPIO 打开所有引脚并拉到断开电平
func OpenGPIO(cfg GPIOConfig, lc logger.LoggingClient) (*GPIO, error) {
	if len(cfg.Pins) != Count {
		return nil, fmt.Errorf("relay: need %d pins, got %d", Count, len(cfg.Pins))
	}
	g := &GPIO{cfg: cfg}
	for i, num := range cfg.Pins {
		p, err := gpio.OpenOutput(cfg.Root, num, cfg.ActiveLow)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("relay K%d: %w", i+1, err)
		}
		g.pins[i] = p
	}
	lc.Infof("继电器 GPIO 已就绪: %v", cfg.Pins)
	return g, nil
}

func (g *GPIO) write(i int, on bool) error {
	if err := g.pins[i].Set(on != g.cfg.ActiveLow); err != nil {
		return err
	}
	g.state[i] = on
	return nil
}

// SetOutput 实现 Actuator
func (g *GPIO) SetOutput(index int, on bool) error {
	if !Valid(index) {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.write(index-1, on)
}

// GetOutput 返回最近一次写入的状态
func (g *GPIO) GetOutput(index int) bool {
	if !Valid(index) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state[index-1]
}

// SetAll 实现 Actuator
func (g *GPIO) SetAll(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < Count; i++ {
		if err := g.write(i, on); err != nil {
			return err
		}
	}
	return nil
}

// Close 释放所有引脚
func (g *GPIO) Close() error {
	var firstErr error
	for i, p := range g.pins {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		g.pins[i] = nil
	}
	return firstErr
}
