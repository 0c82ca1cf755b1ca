package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/linjuya-lu/device_relay_go/internal/modbus"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// DefaultPath 默认配置文件
const DefaultPath = "./res/board.yaml"

var (
	// BoardCfg 全局持有反序列化后的配置
	BoardCfg *BoardConfig
	once     sync.Once

	// 端口名 → Port
	portMap map[string]Port
)

// LoadConfig 从指定 YAML 文件加载全局配置，只初始化一次
func LoadConfig(path string) error {
	var err error
	once.Do(func() {
		cfg, loadErr := Load(path)
		if loadErr != nil {
			err = loadErr
			return
		}
		BoardCfg = cfg
		portMap = make(map[string]Port, len(cfg.Ports))
		for _, p := range cfg.Ports {
			portMap[p.Name] = p
		}
	})
	return err
}

// GetPort 根据端口名称返回 Port 配置
func GetPort(name string) (Port, bool) {
	p, ok := portMap[name]
	return p, ok
}

// Load 读取、填充默认值并校验
func Load(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 内容
func Parse(data []byte) (*BoardConfig, error) {
	cfg := &BoardConfig{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 为零值字段填入出厂默认值
func (c *BoardConfig) ApplyDefaults() {
	b := &c.Board
	if b.Station == 0 {
		b.Station = modbus.DefaultStation
	}
	if b.Registers == 0 {
		b.Registers = modbus.DefaultRegisterCount
	}
	if b.HostPort == "" {
		b.HostPort = "host"
	}
	if b.TxTimeoutMs == 0 {
		b.TxTimeoutMs = 1000
	}
	if b.RxTimeoutMs == 0 {
		b.RxTimeoutMs = 500
	}
	for i := range c.Ports {
		if c.Ports[i].Type == "" {
			c.Ports[i].Type = "uart"
		}
		if c.Ports[i].Baudrate == 0 {
			c.Ports[i].Baudrate = 115200
		}
		if c.Ports[i].TimeoutMs == 0 {
			c.Ports[i].TimeoutMs = 100
		}
	}

	f := &c.Flash
	if f.Base == 0 {
		f.Base = 0x08000000
	}
	if f.Size == 0 {
		f.Size = 256 * 1024
	}
	if f.PageSize == 0 {
		f.PageSize = 2048
	}
	if f.AppBase == 0 {
		f.AppBase = 0x08005000
	}

	p := &c.Params
	if p.BankA == 0 {
		p.BankA = 0x0803F000
	}
	if p.BankB == 0 {
		p.BankB = 0x0803F800
	}
	if p.Count == 0 {
		p.Count = 50
	}

	poll := &c.Poll
	if poll.Station == 0 {
		poll.Station = 1
	}
	if poll.Function == 0 {
		poll.Function = modbus.FuncReadHolding
	}
	if poll.Count == 0 {
		poll.Count = 8
	}
	if poll.Offset == 0 {
		poll.Offset = relay.Count
	}
	if poll.IntervalMs == 0 {
		poll.IntervalMs = 1000
	}

	m := &c.MQTT
	if m.ClientID == "" {
		m.ClientID = "device-relay"
	}
	if m.TelemetryTopic == "" {
		m.TelemetryTopic = "edgex/relay/telemetry"
	}
	if m.CommandTopic == "" {
		m.CommandTopic = "edgex/relay/command"
	}
	if m.ReplyTopic == "" {
		m.ReplyTopic = "edgex/relay/reply"
	}
	if m.IntervalMs == 0 {
		m.IntervalMs = 5000
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9105"
	}
}

// Validate 检查配置是否自洽
func (c *BoardConfig) Validate() error {
	b := c.Board
	if b.Station == 0 || b.Station > 247 {
		return fmt.Errorf("board: invalid station %d", b.Station)
	}
	if b.Registers < relay.Count {
		return fmt.Errorf("board: need at least %d registers, got %d", relay.Count, b.Registers)
	}
	seen := make(map[string]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("ports: empty or duplicate name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if !seen[b.HostPort] {
		return fmt.Errorf("board: host port %q not in Ports", b.HostPort)
	}
	if b.PeripheralPort != "" && !seen[b.PeripheralPort] {
		return fmt.Errorf("board: peripheral port %q not in Ports", b.PeripheralPort)
	}
	if len(b.Relays.Pins) != 0 && len(b.Relays.Pins) != relay.Count {
		return fmt.Errorf("board: need %d relay pins, got %d", relay.Count, len(b.Relays.Pins))
	}

	if err := c.Flash.Geometry.Validate(); err != nil {
		return err
	}
	g := c.Flash.Geometry
	if !g.Contains(c.Flash.AppBase, 1) || (c.Flash.AppBase-g.Base)%g.PageSize != 0 {
		return fmt.Errorf("flash: app base 0x%08X is not a page inside flash", c.Flash.AppBase)
	}
	if len(c.Params.Defaults) != 0 && len(c.Params.Defaults) != c.Params.Count {
		return fmt.Errorf("params: %d defaults for %d parameters", len(c.Params.Defaults), c.Params.Count)
	}
	if c.Poll.Enabled {
		if b.PeripheralPort == "" {
			return fmt.Errorf("poll: enabled without a peripheral port")
		}
		if err := c.Poll.Validate(b.Registers); err != nil {
			return err
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: broker required")
	}
	return nil
}

// PortByName 在本配置中查找端口
func (c *BoardConfig) PortByName(name string) (Port, bool) {
	for _, p := range c.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}
