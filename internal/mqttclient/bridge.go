package mqttclient

import (
	"context"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/board"
	"github.com/linjuya-lu/device_relay_go/internal/config"
)

// Board 是 Bridge 需要的板卡能力
type Board interface {
	Snapshot() board.Snapshot
	Command(line string) ([]byte, error)
}

// Telemetry 遥测主题的 payload
type Telemetry struct {
	Timestamp int64 `json:"timestamp"` // Unix 纳秒
	board.Snapshot
}

// Bridge 周期发布快照，并把命令主题上的控制台命令交给板卡
type Bridge struct {
	conn  Conn
	board Board
	cfg   config.MQTT
	lc    logger.LoggingClient
}

// NewBridge 创建桥接；cfg 的主题为空时对应功能关闭
func NewBridge(conn Conn, b Board, cfg config.MQTT, lc logger.LoggingClient) *Bridge {
	return &Bridge{conn: conn, board: b, cfg: cfg, lc: lc}
}

// Run 订阅命令主题并按间隔发布遥测，直到 ctx 结束后断开连接
func (br *Bridge) Run(ctx context.Context) error {
	defer br.conn.Disconnect()
	if br.cfg.CommandTopic != "" {
		if err := br.conn.Subscribe(br.cfg.CommandTopic, br.handleCommand); err != nil {
			return err
		}
		br.lc.Infof("已订阅命令主题 %s", br.cfg.CommandTopic)
	}
	if br.cfg.TelemetryTopic == "" || br.cfg.IntervalMs <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(time.Duration(br.cfg.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := br.PublishTelemetry(); err != nil {
			br.lc.Errorf("遥测发布失败: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PublishTelemetry 立即发布一次快照
func (br *Bridge) PublishTelemetry() error {
	body, err := newMessage("", 0, Telemetry{
		Timestamp: time.Now().UnixNano(),
		Snapshot:  br.board.Snapshot(),
	})
	if err != nil {
		return err
	}
	return br.conn.Publish(br.cfg.TelemetryTopic, body)
}

func (br *Bridge) handleCommand(raw []byte) {
	msg, req, err := decodeCommand(raw)
	if err != nil {
		br.lc.Warnf("忽略无效命令消息: %v", err)
		br.reply(msg.CorrelationID, 1, CommandReply{Error: err.Error()})
		return
	}
	line := strings.TrimRight(req.Command, "\r\n")
	br.lc.Debugf("MQTT 命令: %q", line)

	out, err := br.board.Command(line)
	if err != nil {
		br.reply(msg.CorrelationID, 1, CommandReply{Command: line, Error: err.Error()})
		return
	}
	br.reply(msg.CorrelationID, 0, CommandReply{Command: line, Reply: string(out)})
}

func (br *Bridge) reply(correlationID string, code int, r CommandReply) {
	if br.cfg.ReplyTopic == "" {
		return
	}
	body, err := newMessage(correlationID, code, r)
	if err != nil {
		br.lc.Errorf("应答编码失败: %v", err)
		return
	}
	if err := br.conn.Publish(br.cfg.ReplyTopic, body); err != nil {
		br.lc.Errorf("应答发布失败: %v", err)
	}
}
