// Package console 处理应用模式下的文本命令（以 CRLF 结尾的 ASCII 行）。
package console

import (
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// Info 板卡信息
type Info struct {
	MCU      string `yaml:"mcu"`
	Version  string `yaml:"version"`
	Hardware string `yaml:"hardware"`
	Mapping  string `yaml:"mapping"`
}

// DefaultInfo 出厂信息
var DefaultInfo = Info{
	MCU:      "STM32G491CCU6",
	Version:  "V2.0",
	Hardware: "Encoder FCT Board V1.0",
	Mapping:  "K1-K8 -> PA0-PA7",
}

// UpdateRequester 执行进入升级模式的流程（写标志并复位）
type UpdateRequester interface {
	RequestUpdate() error
}

type command func(c *Console) ([]byte, error)

var commands = map[string]command{
	"Board Status": func(c *Console) ([]byte, error) {
		return []byte(relay.StatusLine(c.relays) + "\n"), nil
	},
	"Board Info": func(c *Console) ([]byte, error) {
		var b strings.Builder
		b.WriteString("MCU: " + c.info.MCU + "\n")
		b.WriteString("FW: " + c.info.Version + "\n")
		b.WriteString("HW: " + c.info.Hardware + "\n")
		b.WriteString(c.info.Mapping + "\n")
		return []byte(b.String()), nil
	},
	"Firmware Update": func(c *Console) ([]byte, error) {
		// 复位后由升级模式应答 "Update Mode"
		return nil, c.updater.RequestUpdate()
	},
	"Firmware version": func(c *Console) ([]byte, error) {
		return []byte(c.info.Version + "\r\n"), nil
	},
	"Relay AllOn": func(c *Console) ([]byte, error) {
		return []byte("OK\r\n"), c.relays.SetAll(true)
	},
	"Relay AllOff": func(c *Console) ([]byte, error) {
		return []byte("OK\r\n"), c.relays.SetAll(false)
	},
}

// Console 文本命令处理器
type Console struct {
	relays  relay.Actuator
	updater UpdateRequester
	info    Info
	lc      logger.LoggingClient
}

// New 返回命令处理器；info 中为空的字段使用 DefaultInfo
func New(relays relay.Actuator, updater UpdateRequester, info Info, lc logger.LoggingClient) *Console {
	if info.MCU == "" {
		info.MCU = DefaultInfo.MCU
	}
	if info.Version == "" {
		info.Version = DefaultInfo.Version
	}
	if info.Hardware == "" {
		info.Hardware = DefaultInfo.Hardware
	}
	if info.Mapping == "" {
		info.Mapping = DefaultInfo.Mapping
	}
	return &Console{relays: relays, updater: updater, info: info, lc: lc}
}

// IsText 判断一帧是否为文本命令：可打印 ASCII，以 CR LF 结尾
func IsText(frame []byte) bool {
	if len(frame) < 3 || frame[len(frame)-2] != '\r' || frame[len(frame)-1] != '\n' {
		return false
	}
	for _, b := range frame[:len(frame)-2] {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

// Handle 执行一条命令。ok 为 false 表示不认识的命令，调用方应重新打开接收。
func (c *Console) Handle(frame []byte) (reply []byte, ok bool) {
	line := strings.TrimSuffix(string(frame), "\r\n")
	cmd, found := commands[line]
	if !found {
		c.lc.Debugf("未知命令: %q", line)
		return nil, false
	}
	c.lc.Infof("执行命令: %s", line)
	reply, err := cmd(c)
	if err != nil {
		c.lc.Errorf("命令 %q 执行失败: %v", line, err)
		return []byte("ERR\r\n"), true
	}
	return reply, true
}
