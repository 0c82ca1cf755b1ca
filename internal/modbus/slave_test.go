package modbus

import (
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/stretchr/testify/require"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

type counter struct {
	requests   map[byte]int
	exceptions map[byte]byte
}

func (c *counter) Request(fc byte)         { c.requests[fc]++ }
func (c *counter) Exception(fc, code byte) { c.exceptions[fc] = code }

func newTestSlave() (*Slave, *relay.Bank) {
	relays := relay.NewBank()
	s := NewSlave(DefaultStation,
		NewRegisterFile(DefaultRegisterCount),
		NewRegisterFile(DefaultRegisterCount),
		relays, logger.NewMockClient())
	return s, relays
}

func TestOtherStationIgnored(t *testing.T) {
	s, _ := newTestSlave()
	for _, frame := range [][]byte{
		ReadRequest(1, FuncReadHolding, 0, 1),
		ReadRequest(4, FuncReadHolding, 0, 1),
		{3},
		nil,
	} {
		reply, ok := s.Handle(frame)
		require.False(t, ok)
		require.Nil(t, reply)
	}
}

func TestReadHoldingZero(t *testing.T) {
	s, _ := newTestSlave()
	reply, ok := s.Handle([]byte{0x03, 0x03, 0x00, 0x00, 0x00, 0x01, 0x85, 0xE8})
	require.True(t, ok)
	require.Equal(t, []byte{3, 3, 2, 0, 0, 0xC1, 0x84}, reply)
}

func TestReadHoldingValues(t *testing.T) {
	s, _ := newTestSlave()
	require.NoError(t, s.Holding().Write(56, []uint16{0x1234, 0xABCD}))
	reply, ok := s.Handle(ReadRequest(3, FuncReadHolding, 56, 2))
	require.True(t, ok)
	require.Equal(t, checksum.AppendCRC16([]byte{3, 3, 4, 0x12, 0x34, 0xAB, 0xCD}), reply)
}

func TestReadZeroCount(t *testing.T) {
	s, _ := newTestSlave()
	reply, _ := s.Handle(ReadRequest(3, FuncReadHolding, 58, 0))
	require.Equal(t, checksum.AppendCRC16([]byte{3, 3, 0}), reply)
}

func TestExceptions(t *testing.T) {
	badCRC := ReadRequest(3, FuncReadHolding, 0, 1)
	badCRC[7] ^= 0xFF

	multi := WriteMultipleRequest(3, 10, []uint16{1, 2})
	multiBadCRC := append([]byte(nil), multi...)
	multiBadCRC[len(multiBadCRC)-1] ^= 0x01
	multiShort := multi[:len(multi)-1]
	multiBadCount := append([]byte(nil), multi[:len(multi)-2]...)
	multiBadCount[5] = 3
	multiBadCount = checksum.AppendCRC16(multiBadCount)

	tests := []struct {
		name  string
		frame []byte
		fc    byte
		code  byte
	}{
		{"flipped crc", badCRC, 0x03, ExceptionCRC},
		{"short read", ReadRequest(3, FuncReadHolding, 0, 1)[:7], 0x03, ExceptionLength},
		{"long read", append(ReadRequest(3, FuncReadHolding, 0, 1), 0), 0x03, ExceptionLength},
		{"read past end", ReadRequest(3, FuncReadHolding, 57, 2), 0x03, ExceptionAddress},
		{"input past end", ReadRequest(3, FuncReadInput, 0, 59), 0x04, ExceptionAddress},
		{"input bad crc", append(ReadRequest(3, FuncReadInput, 0, 1)[:6], 0, 0), 0x04, ExceptionCRC},
		{"write single past end", WriteSingleRequest(3, 58, 1), 0x06, ExceptionAddress},
		{"write single short", WriteSingleRequest(3, 20, 1)[:6], 0x06, ExceptionLength},
		{"write multiple past end", WriteMultipleRequest(3, 57, []uint16{1, 2}), 0x10, ExceptionAddress},
		{"write multiple bad crc", multiBadCRC, 0x10, ExceptionCRC},
		{"write multiple truncated", multiShort, 0x10, ExceptionLength},
		{"write multiple no byte count", []byte{3, 0x10, 0, 0, 0}, 0x10, ExceptionLength},
		{"write multiple count mismatch", multiBadCount, 0x10, ExceptionLength},
		{"unsupported", checksum.AppendCRC16([]byte{3, 0x01, 0, 0, 0, 8}), 0x01, ExceptionUnsupported},
		{"unsupported short", []byte{3, 0x2B}, 0x2B, ExceptionUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSlave()
			c := &counter{requests: map[byte]int{}, exceptions: map[byte]byte{}}
			s.SetObserver(c)
			before := s.Holding().Snapshot()

			reply, ok := s.Handle(tt.frame)
			require.True(t, ok)
			require.Equal(t, ExceptionFrame(3, tt.fc, tt.code), reply)
			require.True(t, IsException(reply))
			require.Equal(t, tt.code, c.exceptions[tt.fc])
			require.Equal(t, 1, c.requests[tt.fc])
			require.Equal(t, before, s.Holding().Snapshot())
		})
	}
}

func TestFlippedCRCFrame(t *testing.T) {
	s, _ := newTestSlave()
	reply, _ := s.Handle([]byte{0x03, 0x03, 0x00, 0x00, 0x00, 0x01, 0x85, 0x17})
	require.Equal(t, []byte{3, 0x83, 0x01, 0x21, 0x30}, reply)
}

func TestWriteSingleRelay(t *testing.T) {
	s, relays := newTestSlave()
	req := WriteSingleRequest(3, 1, 0x0001)

	reply, ok := s.Handle(req)
	require.True(t, ok)
	require.Equal(t, req, reply)
	require.True(t, relays.GetOutput(1))
	// 继电器地址不落到寄存器
	require.Equal(t, make([]uint16, DefaultRegisterCount), s.Holding().Snapshot())

	again, _ := s.Handle(req)
	require.Equal(t, reply, again)
	require.Equal(t, uint16(0x0001), relay.StatusWord(relays))

	reply, _ = s.Handle(WriteSingleRequest(3, 1, 0))
	require.False(t, relays.GetOutput(1))
	require.Equal(t, WriteSingleRequest(3, 1, 0), reply)
}

func TestWriteSingleAll(t *testing.T) {
	s, relays := newTestSlave()
	on := WriteSingleRequest(3, 0x00FF, 0)
	reply, _ := s.Handle(on)
	require.Equal(t, on, reply)
	require.Equal(t, uint16(0xFF), relay.StatusWord(relays))

	off := WriteSingleRequest(3, 0x0000, 0x1234)
	reply, _ = s.Handle(off)
	require.Equal(t, off, reply)
	require.Equal(t, uint16(0), relay.StatusWord(relays))
}

func TestWriteSingleRegister(t *testing.T) {
	s, relays := newTestSlave()
	req := WriteSingleRequest(3, 20, 0xBEEF)
	reply, _ := s.Handle(req)
	require.Equal(t, req, reply)
	v, err := s.Holding().Get(20)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), v)
	require.Equal(t, 0, relays.Writes)
}

func TestWriteMultiple(t *testing.T) {
	s, _ := newTestSlave()
	reply, ok := s.Handle(WriteMultipleRequest(3, 10, []uint16{0x0102, 0x0304}))
	require.True(t, ok)
	require.Equal(t, checksum.AppendCRC16([]byte{3, 0x10, 0, 10, 0, 2}), reply)

	want := make([]uint16, DefaultRegisterCount)
	want[10] = 0x0102
	want[11] = 0x0304
	require.Equal(t, want, s.Holding().Snapshot())
}

func TestReadInputMirrorsRelays(t *testing.T) {
	s, relays := newTestSlave()
	require.NoError(t, s.Input().Write(8, []uint16{0x0A0B}))
	require.NoError(t, relays.SetOutput(2, true))
	require.NoError(t, relays.SetOutput(8, true))

	reply, _ := s.Handle(ReadRequest(3, FuncReadInput, 0, 9))
	body := []byte{3, 4, 18,
		0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1,
		0x0A, 0x0B}
	require.Equal(t, checksum.AppendCRC16(body), reply)

	// 0x03 读的是另一组寄存器
	reply, _ = s.Handle(ReadRequest(3, FuncReadHolding, 0, 1))
	require.Equal(t, []byte{3, 3, 2, 0, 0, 0xC1, 0x84}, reply)
}

func TestRegisterFileBounds(t *testing.T) {
	r := NewRegisterFile(4)
	require.Error(t, r.Write(3, []uint16{1, 2}))
	require.Equal(t, []uint16{0, 0, 0, 0}, r.Snapshot())
	_, err := r.Get(4)
	require.Error(t, err)
	_, err = r.Read(-1, 1)
	require.Error(t, err)
	require.Equal(t, DefaultRegisterCount, NewRegisterFile(0).Len())
}
