// Package modbus 实现 Modbus RTU 从站引擎和一个固定请求的主站轮询器。
//
// 从站是按帧无状态的：每个入站帧经过长度、CRC、范围校验后，
// 由功能码对应的处理函数生成一帧应答（正常应答或异常帧）。
// 站地址不匹配的帧不产生任何应答。
package modbus

import (
	"encoding/binary"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

// DefaultStation 本机站地址
const DefaultStation byte = 3

// ExceptionDeviceFailure 继电器驱动失败时使用
const ExceptionDeviceFailure byte = 0x04

// maxReadCount 单次读取的寄存器上限（字节数需放入一个字节）
const maxReadCount = 125

// Observer 接收每帧的处理结果，nil 表示不统计
type Observer interface {
	Request(fc byte)
	Exception(fc, code byte)
}

// handler 处理一帧已通过站地址过滤的请求，返回完整应答
type handler func(s *Slave, req []byte) []byte

var handlers = map[byte]handler{
	FuncReadHolding: func(s *Slave, req []byte) []byte {
		return s.readRegisters(req, s.holding, nil)
	},
	FuncReadInput: func(s *Slave, req []byte) []byte {
		return s.readRegisters(req, s.input, s.mirrorRelays)
	},
	FuncWriteSingle:   (*Slave).writeSingle,
	FuncWriteMultiple: (*Slave).writeMultiple,
}

// Slave Modbus RTU 从站
type Slave struct {
	station byte
	holding *RegisterFile
	input   *RegisterFile
	relays  relay.Actuator
	lc      logger.LoggingClient
	obs     Observer
}

// NewSlave holding 供 0x03/0x06/0x10 读写，input 供 0x04 读取
func NewSlave(station byte, holding, input *RegisterFile, relays relay.Actuator, lc logger.LoggingClient) *Slave {
	return &Slave{
		station: station,
		holding: holding,
		input:   input,
		relays:  relays,
		lc:      lc,
	}
}

// SetObserver 设置统计回调
func (s *Slave) SetObserver(o Observer) {
	s.obs = o
}

// Station 返回站地址
func (s *Slave) Station() byte {
	return s.station
}

// Holding 返回保持寄存器
func (s *Slave) Holding() *RegisterFile {
	return s.holding
}

// Input 返回输入寄存器
func (s *Slave) Input() *RegisterFile {
	return s.input
}

// Handle 处理一帧完整的入站数据。
// ok 为 false 表示该帧不是发给本站的，调用方应直接重新打开接收。
func (s *Slave) Handle(frame []byte) (reply []byte, ok bool) {
	if len(frame) < 2 || frame[0] != s.station {
		return nil, false
	}
	s.lc.Debugf("modbus rx: % X", frame)
	fc := frame[1]
	if s.obs != nil {
		s.obs.Request(fc)
	}
	h, found := handlers[fc]
	if !found {
		reply = s.exception(fc, ExceptionUnsupported)
	} else {
		reply = h(s, frame)
	}
	s.lc.Debugf("modbus tx: % X", reply)
	return reply, true
}

func (s *Slave) exception(fc, code byte) []byte {
	s.lc.Warnf("modbus 异常应答: 功能码 0x%02X 异常码 0x%02X", fc, code)
	if s.obs != nil {
		s.obs.Exception(fc, code)
	}
	return ExceptionFrame(s.station, fc, code)
}

// readRegisters 处理 0x03/0x04：[addr fc startHi startLo cntHi cntLo crcLo crcHi]
func (s *Slave) readRegisters(req []byte, src *RegisterFile, refresh func()) []byte {
	fc := req[1]
	if len(req) != fixedRequestLength {
		return s.exception(fc, ExceptionLength)
	}
	if !checksum.VerifyCRC16(req) {
		return s.exception(fc, ExceptionCRC)
	}
	start := int(binary.BigEndian.Uint16(req[2:]))
	count := int(binary.BigEndian.Uint16(req[4:]))
	if count > maxReadCount || !src.InRange(start, count) {
		return s.exception(fc, ExceptionAddress)
	}
	if refresh != nil {
		refresh()
	}
	values, err := src.Read(start, count)
	if err != nil {
		return s.exception(fc, ExceptionAddress)
	}
	reply := make([]byte, 0, 5+2*count)
	reply = append(reply, s.station, fc, byte(2*count))
	reply = encodeRegisters(reply, values)
	return checksum.AppendCRC16(reply)
}

// mirrorRelays 输入寄存器 0..7 对应继电器 K1..K8 的当前状态
func (s *Slave) mirrorRelays() {
	if s.relays == nil {
		return
	}
	for i := 0; i < relay.Count && i < s.input.Len(); i++ {
		var v uint16
		if s.relays.GetOutput(i + 1) {
			v = 1
		}
		_ = s.input.Set(i, v)
	}
}

// writeSingle 处理 0x06。地址 0 全关、1..8 单路、0xFF 全开，其余为普通寄存器写入。
func (s *Slave) writeSingle(req []byte) []byte {
	fc := req[1]
	if len(req) != fixedRequestLength {
		return s.exception(fc, ExceptionLength)
	}
	if !checksum.VerifyCRC16(req) {
		return s.exception(fc, ExceptionCRC)
	}
	addr := binary.BigEndian.Uint16(req[2:])
	value := binary.BigEndian.Uint16(req[4:])

	var err error
	switch {
	case addr == addrAllOff && s.relays != nil:
		err = s.relays.SetAll(false)
	case relay.Valid(int(addr)) && s.relays != nil:
		err = s.relays.SetOutput(int(addr), value != 0)
	case addr == addrAllOn && s.relays != nil:
		err = s.relays.SetAll(true)
	default:
		if s.holding.Set(int(addr), value) != nil {
			return s.exception(fc, ExceptionAddress)
		}
	}
	if err != nil {
		s.lc.Errorf("继电器控制失败 (地址 %d): %v", addr, err)
		return s.exception(fc, ExceptionDeviceFailure)
	}
	echo := make([]byte, fixedRequestLength)
	copy(echo, req)
	return echo
}

// writeMultiple 处理 0x10：帧长由字节数字段推算，先校验长度再校验 CRC
func (s *Slave) writeMultiple(req []byte) []byte {
	fc := req[1]
	if len(req) < 7 {
		return s.exception(fc, ExceptionLength)
	}
	byteCount := int(req[6])
	if len(req) != 9+byteCount {
		return s.exception(fc, ExceptionLength)
	}
	if !checksum.VerifyCRC16(req) {
		return s.exception(fc, ExceptionCRC)
	}
	start := int(binary.BigEndian.Uint16(req[2:]))
	count := int(binary.BigEndian.Uint16(req[4:]))
	if byteCount != 2*count {
		return s.exception(fc, ExceptionLength)
	}
	if err := s.holding.Write(start, decodeRegisters(req[7:7+byteCount])); err != nil {
		return s.exception(fc, ExceptionAddress)
	}
	reply := make([]byte, 6, 8)
	reply[0] = s.station
	reply[1] = fc
	copy(reply[2:6], req[2:6])
	return checksum.AppendCRC16(reply)
}
