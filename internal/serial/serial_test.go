package serial

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/stretchr/testify/require"
	tarm "github.com/tarm/serial"

	"github.com/linjuya-lu/device_relay_go/internal/config"
)

// scriptPort 按脚本返回数据，nil 表示一次读超时（线路空闲）
type scriptPort struct {
	mu      sync.Mutex
	reads   [][]byte
	written [][]byte
	block   chan struct{}
	onWrite func(p []byte)
}

func (s *scriptPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		time.Sleep(time.Millisecond)
		return 0, io.EOF
	}
	next := s.reads[0]
	if next == nil {
		s.reads = s.reads[1:]
		return 0, io.EOF
	}
	n := copy(p, next)
	if n < len(next) {
		s.reads[0] = next[n:]
	} else {
		s.reads = s.reads[1:]
	}
	return n, nil
}

func (s *scriptPort) Write(p []byte) (int, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.written = append(s.written, append([]byte(nil), p...))
	fn := s.onWrite
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return len(p), nil
}

func (s *scriptPort) push(chunks ...[]byte) {
	s.mu.Lock()
	s.reads = append(s.reads, chunks...)
	s.mu.Unlock()
}

func TestFramerIdleSplits(t *testing.T) {
	p := &scriptPort{}
	p.push([]byte{1, 2}, []byte{3}, nil, nil, []byte{4, 5}, nil)
	f := NewFramer(p, 16)

	frame, err := f.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, frame)

	frame, err = f.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5}, frame)
}

func TestFramerMaxSize(t *testing.T) {
	p := &scriptPort{}
	p.push([]byte{1, 2, 3, 4, 5, 6}, nil)
	f := NewFramer(p, 4)

	frame, err := f.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, frame)
	frame, err = f.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6}, frame)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestFramerErrors(t *testing.T) {
	_, err := NewFramer(failingReader{}, 8).Next(context.Background())
	require.EqualError(t, err, "device gone")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = NewFramer(&scriptPort{}, 8).Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransmitBusy(t *testing.T) {
	p := &scriptPort{block: make(chan struct{})}
	l := NewLink("host", p, LinkConfig{TxTimeout: 20 * time.Millisecond}, logger.NewMockClient())

	err := l.Transmit(context.Background(), []byte{1})
	require.Error(t, err)
	require.False(t, IsBusy(err))
	require.True(t, l.Busy())

	err = l.Transmit(context.Background(), []byte{2})
	require.True(t, IsBusy(err))

	close(p.block)
	require.Eventually(t, func() bool { return !l.Busy() }, time.Second, time.Millisecond)
	require.NoError(t, l.Transmit(context.Background(), []byte{3}))
	require.Equal(t, [][]byte{{1}, {3}}, p.written)
}

func TestTransact(t *testing.T) {
	p := &scriptPort{}
	p.onWrite = func(req []byte) {
		p.push(append([]byte{0xEE}, req...), nil)
	}
	l := NewLink("peripheral", p, LinkConfig{}, logger.NewMockClient())

	resp, err := l.Transact(context.Background(), []byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, []byte{0xEE, 1, 2}, resp)
}

func TestTransactTimeout(t *testing.T) {
	l := NewLink("peripheral", &scriptPort{}, LinkConfig{RxTimeout: 20 * time.Millisecond}, logger.NewMockClient())
	_, err := l.Transact(context.Background(), []byte{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no response")
}

func TestNewPort(t *testing.T) {
	for _, typ := range []string{"uart", "rs232", "rs485"} {
		p, err := NewPort(config.Port{Name: "p", Type: typ})
		require.NoError(t, err)
		require.Equal(t, "p", p.Name())
	}
	_, err := NewPort(config.Port{Type: "can"})
	require.Error(t, err)
}

func TestTarmConfig(t *testing.T) {
	sc, err := tarmConfig(config.Port{Device: "/dev/ttyS1", Baudrate: 9600, TimeoutMs: 50, Parity: "e", StopBits: 1})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyS1", sc.Name)
	require.Equal(t, 9600, sc.Baud)
	require.Equal(t, byte(8), sc.Size)
	require.Equal(t, tarm.ParityEven, sc.Parity)
	require.Equal(t, tarm.Stop1, sc.StopBits)
	require.Equal(t, 50*time.Millisecond, sc.ReadTimeout)

	sc, err = tarmConfig(config.Port{StopBits: 2})
	require.NoError(t, err)
	require.Equal(t, tarm.ParityNone, sc.Parity)
	require.Equal(t, tarm.Stop2, sc.StopBits)

	_, err = tarmConfig(config.Port{Parity: "M"})
	require.Error(t, err)
	_, err = tarmConfig(config.Port{StopBits: 3})
	require.Error(t, err)
}
