// Package checksum 提供串口协议和 Flash 参数区共用的两种 CRC 算法。
// 两者互不替代：CRC16 用于 Modbus RTU 与 IAP 帧，CRC32 只用于参数区。
package checksum

import "encoding/binary"

const (
	// CRC16Init Modbus CRC16 初值
	CRC16Init uint16 = 0xFFFF
	// CRC16Poly 0x8005 的反射形式
	CRC16Poly uint16 = 0xA001

	// CRC32Init Flash 参数区 CRC32 初值
	CRC32Init uint32 = 0xFFFFFFFF
	// CRC32Poly MSB-first 多项式
	CRC32Poly uint32 = 0x04C11DB7
)

// CRC16Modbus 计算 Modbus RTU 帧的 CRC16（低位在前发送）
func CRC16Modbus(data []byte) uint16 {
	crc := CRC16Init
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ CRC16Poly
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCRC16 把 CRC16 以 [低字节, 高字节] 追加到 frame 末尾
func AppendCRC16(frame []byte) []byte {
	crc := CRC16Modbus(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// VerifyCRC16 校验末尾两个字节（低字节在前）是否等于前面所有字节的 CRC16
func VerifyCRC16(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	return binary.LittleEndian.Uint16(frame[n:]) == CRC16Modbus(frame[:n])
}

// CRC32Flash 按 32 位字计算 MSB-first CRC32，无反射、无末尾异或。
func CRC32Flash(words []uint32) uint32 {
	crc := CRC32Init
	for _, w := range words {
		crc = crc32Word(crc, w)
	}
	return crc
}

// CRC32FlashInt32 与 CRC32Flash 相同，输入按位重解释为无符号字
func CRC32FlashInt32(values []int32) uint32 {
	crc := CRC32Init
	for _, v := range values {
		crc = crc32Word(crc, uint32(v))
	}
	return crc
}

func crc32Word(crc, w uint32) uint32 {
	for i := 0; i < 32; i++ {
		if (crc^w)&0x80000000 != 0 {
			crc = (crc << 1) ^ CRC32Poly
		} else {
			crc <<= 1
		}
		w <<= 1
	}
	return crc
}
