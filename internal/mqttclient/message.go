package mqttclient

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	apiVersion  = "v3"
	contentJSON = "application/json"
)

// EdgexMessage 是 EdgeX MessageBus 的通用消息格式
type EdgexMessage struct {
	ApiVersion    string          `json:"apiVersion"`
	ReceivedTopic string          `json:"receivedTopic,omitempty"`
	CorrelationID string          `json:"correlationID"`
	RequestID     string          `json:"requestID"`
	ErrorCode     int             `json:"errorCode"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ContentType   string          `json:"contentType"`
}

// CommandRequest 命令主题的 payload
type CommandRequest struct {
	Command string `json:"command"` // 控制台命令，例如 "Relay AllOn"
}

// CommandReply 应答主题的 payload
type CommandReply struct {
	Command string `json:"command"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

// newMessage 组装一条消息；correlationID 为空时新生成
func newMessage(correlationID string, errorCode int, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return json.Marshal(EdgexMessage{
		ApiVersion:    apiVersion,
		CorrelationID: correlationID,
		RequestID:     uuid.NewString(),
		ErrorCode:     errorCode,
		Payload:       body,
		ContentType:   contentJSON,
	})
}

// decodeCommand 解析命令消息。payload 可以是 CommandRequest，也可以直接是命令字符串。
func decodeCommand(raw []byte) (EdgexMessage, CommandRequest, error) {
	var msg EdgexMessage
	var req CommandRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, req, fmt.Errorf("decode envelope: %w", err)
	}
	if len(msg.Payload) == 0 {
		return msg, req, fmt.Errorf("envelope has no payload")
	}
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		var text string
		if json.Unmarshal(msg.Payload, &text) != nil {
			return msg, req, fmt.Errorf("decode command: %w", err)
		}
		req.Command = text
	}
	if req.Command == "" {
		return msg, req, fmt.Errorf("empty command")
	}
	return msg, req, nil
}
