package iap

import (
	"bytes"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/flash"
)

// Mode 运行模式
type Mode int

const (
	ModeApplication Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "application"
}

// Hooks 由设备实例提供的复位和跳转动作
type Hooks struct {
	// Reset 系统复位，调用方应重新执行 Boot
	Reset func()
	// Jump 关闭接收和外设后切换到 appBase 处的应用程序
	Jump func(appBase uint32)
}

// Controller 根据启动标志决定运行模式
type Controller struct {
	flag    BootFlag
	f       flash.Flash
	appBase uint32
	lc      logger.LoggingClient
	hooks   Hooks
}

// NewController f 用于检查应用区是否有程序
func NewController(flag BootFlag, f flash.Flash, appBase uint32, lc logger.LoggingClient) *Controller {
	return &Controller{flag: flag, f: f, appBase: appBase, lc: lc}
}

// SetHooks 设置复位和跳转动作
func (c *Controller) SetHooks(h Hooks) {
	c.hooks = h
}

// Boot 读取并清除启动标志。标志有效时停留在升级模式，否则跳转到应用程序。
func (c *Controller) Boot() (Mode, error) {
	update, err := TakeUpdateRequest(c.flag)
	if err != nil {
		c.lc.Errorf("读取启动标志失败: %v", err)
		return ModeApplication, err
	}
	if update {
		c.lc.Infof("检测到升级请求")
		return ModeUpdate, nil
	}
	c.Jump()
	return ModeApplication, nil
}

// RequestUpdate 写入升级标志并复位
func (c *Controller) RequestUpdate() error {
	if err := c.flag.Write(UpdateRequest); err != nil {
		return err
	}
	c.lc.Infof("已写入升级标志, 系统复位")
	if c.hooks.Reset != nil {
		c.hooks.Reset()
	}
	return nil
}

// Jump 跳转到应用程序
func (c *Controller) Jump() {
	if !c.ImagePresent() {
		c.lc.Warnf("应用区 0x%08X 为空", c.appBase)
	}
	c.lc.Infof("跳转到应用程序 0x%08X", c.appBase)
	if c.hooks.Jump != nil {
		c.hooks.Jump(c.appBase)
	}
}

// ImagePresent 应用区起始的向量表（栈指针、复位入口）是否已写入
func (c *Controller) ImagePresent() bool {
	vec := make([]byte, 8)
	if err := c.f.Read(c.appBase, vec); err != nil {
		return false
	}
	return !bytes.Equal(vec, bytes.Repeat([]byte{flash.ErasedByte}, len(vec)))
}
