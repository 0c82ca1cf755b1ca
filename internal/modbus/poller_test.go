package modbus

import (
	"context"
	"errors"
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/stretchr/testify/require"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
)

type scriptedLink struct {
	replies [][]byte
	errs    []error
	sent    [][]byte
}

func (l *scriptedLink) Transact(_ context.Context, req []byte) ([]byte, error) {
	l.sent = append(l.sent, req)
	i := len(l.sent) - 1
	var err error
	if i < len(l.errs) {
		err = l.errs[i]
	}
	if i < len(l.replies) {
		return l.replies[i], err
	}
	return nil, err
}

var pollCfg = PollConfig{Enabled: true, Station: 1, Function: FuncReadInput, Start: 0, Count: 2, Offset: 8, IntervalMs: 100}

func TestPollOnceWritesAtOffset(t *testing.T) {
	link := &scriptedLink{replies: [][]byte{
		checksum.AppendCRC16([]byte{1, 4, 4, 0x00, 0x11, 0x22, 0x33}),
	}}
	input := NewRegisterFile(DefaultRegisterCount)
	p := NewPoller(pollCfg, link, input, logger.NewMockClient())
	var hooked []error
	p.SetHook(func(err error) { hooked = append(hooked, err) })

	require.NoError(t, p.PollOnce(context.Background()))
	require.Equal(t, [][]byte{ReadRequest(1, 4, 0, 2)}, link.sent)
	got, err := input.Read(8, 2)
	require.NoError(t, err)
	require.Equal(t, []uint16{0x0011, 0x2233}, got)
	require.Equal(t, []error{nil}, hooked)
}

func TestPollOnceFailuresLeaveRegisters(t *testing.T) {
	good := checksum.AppendCRC16([]byte{1, 4, 4, 0, 1, 0, 2})
	badCRC := append([]byte(nil), good...)
	badCRC[3] ^= 0xFF

	tests := []struct {
		name  string
		reply []byte
		err   error
	}{
		{"transport", nil, errors.New("timeout")},
		{"crc", badCRC, nil},
		{"exception", ExceptionFrame(1, 4, 2), nil},
		{"station", checksum.AppendCRC16([]byte{2, 4, 4, 0, 1, 0, 2}), nil},
		{"function", checksum.AppendCRC16([]byte{1, 3, 4, 0, 1, 0, 2}), nil},
		{"byte count", checksum.AppendCRC16([]byte{1, 4, 2, 0, 1}), nil},
		{"short", []byte{1, 4}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &scriptedLink{replies: [][]byte{tt.reply}, errs: []error{tt.err}}
			input := NewRegisterFile(DefaultRegisterCount)
			p := NewPoller(pollCfg, link, input, logger.NewMockClient())
			require.Error(t, p.PollOnce(context.Background()))
			require.Equal(t, make([]uint16, DefaultRegisterCount), input.Snapshot())
		})
	}
}

func TestPollConfigValidate(t *testing.T) {
	require.NoError(t, pollCfg.Validate(DefaultRegisterCount))

	bad := pollCfg
	bad.Function = 0x06
	require.Error(t, bad.Validate(DefaultRegisterCount))

	bad = pollCfg
	bad.Offset = 57
	require.Error(t, bad.Validate(DefaultRegisterCount))

	bad = pollCfg
	bad.Count = 0
	require.Error(t, bad.Validate(DefaultRegisterCount))

	bad = pollCfg
	bad.IntervalMs = 0
	require.Error(t, bad.Validate(DefaultRegisterCount))
}

func TestPollerRunStops(t *testing.T) {
	link := &scriptedLink{}
	p := NewPoller(pollCfg, link, NewRegisterFile(DefaultRegisterCount), logger.NewMockClient())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
	require.Len(t, link.sent, 1)
}

func TestPollerGate(t *testing.T) {
	link := &scriptedLink{}
	p := NewPoller(pollCfg, link, NewRegisterFile(DefaultRegisterCount), logger.NewMockClient())
	p.SetGate(func() bool { return false })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
	require.Empty(t, link.sent)
}
