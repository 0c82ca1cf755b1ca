package config

import (
	"github.com/linjuya-lu/device_relay_go/internal/console"
	"github.com/linjuya-lu/device_relay_go/internal/flash"
	"github.com/linjuya-lu/device_relay_go/internal/modbus"
	"github.com/linjuya-lu/device_relay_go/internal/paramstore"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// Port 描述一个串口设备
type Port struct {
	Name      string `yaml:"name"`      // 逻辑名称
	Device    string `yaml:"device"`    // 串口设备节点
	Type      string `yaml:"type"`      // uart/rs485/rs232
	Baudrate  int    `yaml:"baudrate"`  // 波特率
	Parity    string `yaml:"parity"`    // N/E/O，空为 N
	StopBits  int    `yaml:"stopBits"`  // 1 或 2，0 为 1
	DEPin     int    `yaml:"dePin"`     // RS-485 DE/RE 控制 GPIO 编号
	GPIORoot  string `yaml:"gpioRoot"`  // sysfs GPIO 根目录，空则使用默认
	TimeoutMs int    `yaml:"timeoutMs"` // 读超时（毫秒），同时作为帧间空闲判定
}

// Board 板卡本身
type Board struct {
	Station        uint8            `yaml:"station"`        // Modbus 站地址
	Registers      int              `yaml:"registers"`      // 寄存器个数
	HostPort       string           `yaml:"hostPort"`       // 上位机链路 Port.Name
	PeripheralPort string           `yaml:"peripheralPort"` // 外设轮询链路 Port.Name，可为空
	TxTimeoutMs    int              `yaml:"txTimeoutMs"`    // 单次发送超时
	RxTimeoutMs    int              `yaml:"rxTimeoutMs"`    // 轮询等待应答超时
	Relays         relay.GPIOConfig `yaml:"relays"`         // 引脚为空时使用内存继电器
	Info           console.Info     `yaml:"info"`
}

// Flash 片上 Flash 映像
type Flash struct {
	Image          string `yaml:"image"` // 映像文件路径，空则只在内存中
	flash.Geometry `yaml:",inline"`
	AppBase        uint32 `yaml:"appBase"` // 应用程序起始地址
}

// Params 参数区
type Params struct {
	paramstore.Config `yaml:",inline"`
	Defaults          []int32 `yaml:"defaults"` // 两页均无效时使用
}

// BootFlag 备份寄存器
type BootFlag struct {
	Path string `yaml:"path"` // 空则只在内存中
}

// MQTT 遥测与命令通道
type MQTT struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"clientId"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	QoS            byte   `yaml:"qos"`
	TelemetryTopic string `yaml:"telemetryTopic"`
	CommandTopic   string `yaml:"commandTopic"`
	ReplyTopic     string `yaml:"replyTopic"`
	IntervalMs     int    `yaml:"intervalMs"`
}

// Metrics Prometheus 监听
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// BoardConfig 汇总所有配置段
type BoardConfig struct {
	Board    Board             `yaml:"Board"`
	Ports    []Port            `yaml:"Ports"`
	Flash    Flash             `yaml:"Flash"`
	Params   Params            `yaml:"Params"`
	BootFlag BootFlag          `yaml:"BootFlag"`
	Poll     modbus.PollConfig `yaml:"Poll"`
	MQTT     MQTT              `yaml:"MQTT"`
	Metrics  Metrics           `yaml:"Metrics"`
}
