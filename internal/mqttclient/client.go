// Package mqttclient 把板卡接到 MQTT：周期发布状态快照，订阅命令主题并回复。
package mqttclient

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/linjuya-lu/device_relay_go/internal/config"
)

// Conn 是 Bridge 用到的最小 MQTT 能力
type Conn interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func([]byte)) error
	Disconnect()
}

// Client 封装 Paho 客户端，所有发布和订阅使用同一个 QoS
type Client struct {
	inner paho.Client
	qos   byte
}

// NewClient 根据配置创建 MQTT 客户端并连接 Broker
func NewClient(cfg config.MQTT) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetAutoReconnect(true).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c := &Client{inner: paho.NewClient(opts), qos: cfg.QoS}
	tok := c.inner.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("MQTT 连接超时: %s", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("MQTT 连接失败: %w", err)
	}
	return c, nil
}

// Publish 发布并等待完成
func (c *Client) Publish(topic string, payload []byte) error {
	tok := c.inner.Publish(topic, c.qos, false, payload)
	tok.Wait()
	return tok.Error()
}

// Subscribe 订阅主题，handler 接收原始负载
func (c *Client) Subscribe(topic string, handler func([]byte)) error {
	tok := c.inner.Subscribe(topic, c.qos, func(_ paho.Client, m paho.Message) {
		handler(m.Payload())
	})
	tok.Wait()
	return tok.Error()
}

// Disconnect 断开与 Broker 的连接
func (c *Client) Disconnect() {
	c.inner.Disconnect(250)
}
