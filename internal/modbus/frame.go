package modbus

import (
	"encoding/binary"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
)

// 功能码
const (
	FuncReadHolding    byte = 0x03
	FuncReadInput      byte = 0x04
	FuncWriteSingle    byte = 0x06
	FuncWriteMultiple  byte = 0x10
	exceptionFlag      byte = 0x80
	fixedRequestLength      = 8
)

// 异常码
const (
	ExceptionCRC         byte = 0x01
	ExceptionAddress     byte = 0x02
	ExceptionLength      byte = 0x03
	ExceptionUnsupported byte = 0x05
)

// 0x06 的特殊地址
const (
	addrAllOff uint16 = 0x0000
	addrAllOn  uint16 = 0x00FF
)

// MaxFrameSize 最大 RTU 帧长度
const MaxFrameSize = 256

// ExceptionFrame 构造 [addr, fc|0x80, code, crc_lo, crc_hi]
func ExceptionFrame(station, fc, code byte) []byte {
	return checksum.AppendCRC16([]byte{station, fc | exceptionFlag, code})
}

// IsException 判断应答是否为异常帧
func IsException(reply []byte) bool {
	return len(reply) >= 2 && reply[1]&exceptionFlag != 0
}

// ReadRequest 构造 0x03/0x04 读请求
func ReadRequest(station, fc byte, start, count uint16) []byte {
	req := make([]byte, 6, fixedRequestLength)
	req[0] = station
	req[1] = fc
	binary.BigEndian.PutUint16(req[2:], start)
	binary.BigEndian.PutUint16(req[4:], count)
	return checksum.AppendCRC16(req)
}

// WriteSingleRequest 构造 0x06 写请求
func WriteSingleRequest(station byte, addr, value uint16) []byte {
	req := make([]byte, 6, fixedRequestLength)
	req[0] = station
	req[1] = FuncWriteSingle
	binary.BigEndian.PutUint16(req[2:], addr)
	binary.BigEndian.PutUint16(req[4:], value)
	return checksum.AppendCRC16(req)
}

// WriteMultipleRequest 构造 0x10 写请求
func WriteMultipleRequest(station byte, start uint16, values []uint16) []byte {
	req := make([]byte, 7, 9+2*len(values))
	req[0] = station
	req[1] = FuncWriteMultiple
	binary.BigEndian.PutUint16(req[2:], start)
	binary.BigEndian.PutUint16(req[4:], uint16(len(values)))
	req[6] = byte(2 * len(values))
	for _, v := range values {
		req = binary.BigEndian.AppendUint16(req, v)
	}
	return checksum.AppendCRC16(req)
}

func encodeRegisters(dst []byte, values []uint16) []byte {
	for _, v := range values {
		dst = binary.BigEndian.AppendUint16(dst, v)
	}
	return dst
}

func decodeRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return out
}
