// Package iap 实现在线升级（IAP）帧协议、升级状态机和启动模式控制。
//
// 帧格式（多字节字段均为小端）：
//
//	0x55 0xAA | len(2) | addr(4) | payload[len] | crc16(len+addr+payload)
//
// len=0 且 addr=0xFFFFFFFF 为传输结束帧。
package iap

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
)

const (
	Header1 byte = 0x55
	Header2 byte = 0xAA

	// MaxPayload 单帧最大数据长度
	MaxPayload = 1024
	// MinFrameSize header(2)+len(2)+addr(4)+crc(2)
	MinFrameSize = 10
	// MaxFrameSize 接收缓冲区上限
	MaxFrameSize = MinFrameSize + MaxPayload

	// EndAddress 结束帧地址
	EndAddress uint32 = 0xFFFFFFFF

	headerSize = 8
)

// Status 设备返回的文本状态
type Status string

const (
	StatusUpdateMode    Status = "Update Mode"
	StatusOK            Status = "OK"
	StatusDone          Status = "DONE"
	StatusCRCErr        Status = "CRCERR"
	StatusLenErr        Status = "LEN_ERR"
	StatusAddrErr       Status = "ADDR_ERR"
	StatusFlashWrErr    Status = "FLASH_WR_ERR"
	StatusFlashEraseErr Status = "FLASH_ERASE_ERR"
)

var knownStatus = map[Status]bool{
	StatusUpdateMode: true, StatusOK: true, StatusDone: true, StatusCRCErr: true,
	StatusLenErr: true, StatusAddrErr: true, StatusFlashWrErr: true, StatusFlashEraseErr: true,
}

// Line 返回以 CRLF 结尾的应答
func (s Status) Line() []byte {
	return []byte(string(s) + "\r\n")
}

// ParseStatus 从应答文本中取出所有已知状态，按出现顺序
func ParseStatus(reply []byte) []Status {
	var out []Status
	for _, line := range strings.Split(string(reply), "\n") {
		st := Status(strings.TrimSpace(line))
		if knownStatus[st] {
			out = append(out, st)
		}
	}
	return out
}

// Frame 一帧已校验的数据
type Frame struct {
	Address uint32
	Payload []byte
}

// IsEnd 是否为结束帧
func (f Frame) IsEnd() bool {
	return len(f.Payload) == 0 && f.Address == EndAddress
}

// EncodeFrame 生成一帧完整的 IAP 数据
func EncodeFrame(addr uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("payload %d exceeds %d bytes", len(payload), MaxPayload), nil)
	}
	buf := make([]byte, headerSize, MinFrameSize+len(payload))
	buf[0] = Header1
	buf[1] = Header2
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:], addr)
	buf = append(buf, payload...)
	crc := checksum.CRC16Modbus(buf[2:])
	return binary.LittleEndian.AppendUint16(buf, crc), nil
}

// EndOfTransfer 结束帧
func EndOfTransfer() []byte {
	b, _ := EncodeFrame(EndAddress, nil)
	return b
}

// headerPrefix 判断 buf 是否可能是一帧的开头
func headerPrefix(buf []byte) bool {
	if len(buf) >= 1 && buf[0] != Header1 {
		return false
	}
	if len(buf) >= 2 && buf[1] != Header2 {
		return false
	}
	return true
}

func declaredLength(buf []byte) int {
	return int(binary.LittleEndian.Uint16(buf[2:4]))
}
