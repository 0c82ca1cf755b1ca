package mqttclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/stretchr/testify/require"

	"github.com/linjuya-lu/device_relay_go/internal/board"
	"github.com/linjuya-lu/device_relay_go/internal/config"
)

type published struct {
	topic   string
	payload []byte
}

type fakeConn struct {
	mu           sync.Mutex
	pub          []published
	handlers     map[string]func([]byte)
	disconnected bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[string]func([]byte){}}
}

func (c *fakeConn) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pub = append(c.pub, published{topic, payload})
	return nil
}

func (c *fakeConn) Subscribe(topic string, handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeConn) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	h(payload)
}

func (c *fakeConn) sentTo(topic string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, p := range c.pub {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

type fakeBoard struct {
	lines []string
}

func (b *fakeBoard) Snapshot() board.Snapshot {
	return board.Snapshot{Mode: "application", Relays: []bool{true, false}, Params: []int32{7}}
}

func (b *fakeBoard) Command(line string) ([]byte, error) {
	b.lines = append(b.lines, line)
	if line == "Board Status" {
		return nil, errors.New("board is in update mode")
	}
	return []byte("OK\r\n"), nil
}

var testCfg = config.MQTT{
	TelemetryTopic: "t/telemetry",
	CommandTopic:   "t/command",
	ReplyTopic:     "t/reply",
	IntervalMs:     10,
}

func decode(t *testing.T, raw []byte, payload any) EdgexMessage {
	var msg EdgexMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "v3", msg.ApiVersion)
	require.Equal(t, "application/json", msg.ContentType)
	require.NotEmpty(t, msg.RequestID)
	require.NoError(t, json.Unmarshal(msg.Payload, payload))
	return msg
}

func TestPublishTelemetry(t *testing.T) {
	conn := newFakeConn()
	br := NewBridge(conn, &fakeBoard{}, testCfg, logger.NewMockClient())
	require.NoError(t, br.PublishTelemetry())

	out := conn.sentTo("t/telemetry")
	require.Len(t, out, 1)
	var tm Telemetry
	msg := decode(t, out[0], &tm)
	require.NotEmpty(t, msg.CorrelationID)
	require.Equal(t, "application", tm.Mode)
	require.Equal(t, []bool{true, false}, tm.Relays)
	require.Equal(t, []int32{7}, tm.Params)
	require.Positive(t, tm.Timestamp)
}

func TestCommandRoundTrip(t *testing.T) {
	conn := newFakeConn()
	b := &fakeBoard{}
	br := NewBridge(conn, b, testCfg, logger.NewMockClient())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- br.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.handlers["t/command"] != nil
	}, time.Second, time.Millisecond)

	tests := []struct {
		name    string
		payload string
		command string
		reply   string
		code    int
	}{
		{"object", `{"command":"Relay AllOn"}`, "Relay AllOn", "OK\r\n", 0},
		{"string", `"Relay AllOff\r\n"`, "Relay AllOff", "OK\r\n", 0},
		{"board error", `{"command":"Board Status"}`, "Board Status", "", 1},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := []byte(`{"apiVersion":"v3","correlationID":"c-` + tt.name + `","requestID":"r","errorCode":0,"contentType":"application/json","payload":` + tt.payload + `}`)
			conn.deliver("t/command", req)

			replies := conn.sentTo("t/reply")
			require.Len(t, replies, i+1)
			var r CommandReply
			msg := decode(t, replies[i], &r)
			require.Equal(t, "c-"+tt.name, msg.CorrelationID)
			require.Equal(t, tt.code, msg.ErrorCode)
			require.Equal(t, tt.command, r.Command)
			require.Equal(t, tt.reply, r.Reply)
			if tt.code != 0 {
				require.NotEmpty(t, r.Error)
			}
		})
	}
	require.Equal(t, []string{"Relay AllOn", "Relay AllOff", "Board Status"}, b.lines)

	require.Eventually(t, func() bool { return len(conn.sentTo("t/telemetry")) >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.True(t, conn.disconnected)
}

func TestInvalidCommandMessage(t *testing.T) {
	conn := newFakeConn()
	b := &fakeBoard{}
	br := NewBridge(conn, b, testCfg, logger.NewMockClient())

	for _, raw := range []string{`not json`, `{"apiVersion":"v3"}`, `{"payload":{"command":""}}`, `{"payload":42}`} {
		br.handleCommand([]byte(raw))
	}
	require.Empty(t, b.lines)
	replies := conn.sentTo("t/reply")
	require.Len(t, replies, 4)
	for _, raw := range replies {
		var r CommandReply
		msg := decode(t, raw, &r)
		require.Equal(t, 1, msg.ErrorCode)
		require.NotEmpty(t, r.Error)
	}
}
