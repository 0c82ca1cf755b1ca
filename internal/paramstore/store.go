// Package paramstore 在两页 Flash 中持久化一组固定长度的 int32 参数。
//
// 每页布局（小端 32 位字）：
//
//	[magic 0x5A5A5A5A][data0 ... dataN-1][crc32(data)][0xFFFFFFFF 补齐到双字]
//
// 保存时先擦写 A 页再擦写 B 页；加载时优先 A 页，A 无效再用 B 页。
// B 页的数据不会回写到 A 页。
package paramstore

import (
	"encoding/binary"
	"fmt"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
	"github.com/linjuya-lu/device_relay_go/internal/flash"
)

// Magic 有效页标志
const Magic uint32 = 0x5A5A5A5A

// Bank 标识一个存储页
type Bank int

const (
	BankA Bank = iota
	BankB
)

func (b Bank) String() string {
	if b == BankA {
		return "A"
	}
	return "B"
}

// Config 描述两页的位置和参数个数
type Config struct {
	BankA uint32 `yaml:"bankA"` // 主页地址，例如 0x0803F000
	BankB uint32 `yaml:"bankB"` // 备份页地址，例如 0x0803F800
	Count int    `yaml:"count"` // 参数个数
}

// Store 是双页 + CRC 保护的参数区
type Store struct {
	f     flash.Flash
	cfg   Config
	lc    logger.LoggingClient
	hooks Hooks
}

// Hooks 允许上层统计保存/加载结果，可为空
type Hooks struct {
	OnSave func(err error)
	OnLoad func(bank Bank, ok bool)
}

// New 校验两页地址后返回 Store
func New(f flash.Flash, cfg Config, lc logger.LoggingClient) (*Store, error) {
	g := f.Geometry()
	if cfg.Count < 0 {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid, "parameter count must not be negative", nil)
	}
	size := recordSize(cfg.Count)
	for _, addr := range []uint32{cfg.BankA, cfg.BankB} {
		if (addr-g.Base)%g.PageSize != 0 || !g.Contains(addr, g.PageSize) {
			return nil, errors.NewCommonEdgeX(errors.KindContractInvalid,
				fmt.Sprintf("bank address 0x%08X is not a flash page", addr), nil)
		}
	}
	if cfg.BankA == cfg.BankB {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid, "bank A and bank B must be different pages", nil)
	}
	if size > g.PageSize {
		return nil, errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("%d parameters need %d bytes, page holds %d", cfg.Count, size, g.PageSize), nil)
	}
	return &Store{f: f, cfg: cfg, lc: lc}, nil
}

// SetHooks 设置统计回调
func (s *Store) SetHooks(h Hooks) {
	s.hooks = h
}

// Len 返回参数个数
func (s *Store) Len() int {
	return s.cfg.Count
}

// Save 依次擦写 A、B 两页。任何一次擦除或编程失败都立即返回，不重试；
// 调用方应把错误视为本次保存失败。
func (s *Store) Save(buffer []int32) (err error) {
	defer func() {
		if s.hooks.OnSave != nil {
			s.hooks.OnSave(err)
		}
	}()
	if len(buffer) != s.cfg.Count {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("buffer has %d values, store holds %d", len(buffer), s.cfg.Count), nil)
	}
	record := Encode(buffer)
	for _, bank := range []Bank{BankA, BankB} {
		if err := s.writeBank(bank, record); err != nil {
			s.lc.Errorf("参数区 %s 页写入失败: %v", bank, err)
			return err
		}
	}
	s.lc.Infof("参数已保存: %d 个, crc=0x%08X", len(buffer), checksum.CRC32FlashInt32(buffer))
	return nil
}

// Load 读取 A 页，无效则读取 B 页，把数据拷贝到 buffer。
// 两页都无效时返回 KindEntityDoesNotExist 错误，buffer 保持不变。
func (s *Store) Load(buffer []int32) error {
	if len(buffer) != s.cfg.Count {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("buffer has %d values, store holds %d", len(buffer), s.cfg.Count), nil)
	}
	for _, bank := range []Bank{BankA, BankB} {
		values, err := s.readBank(bank)
		if s.hooks.OnLoad != nil {
			s.hooks.OnLoad(bank, err == nil)
		}
		if err != nil {
			s.lc.Warnf("参数区 %s 页无效: %v", bank, err)
			continue
		}
		copy(buffer, values)
		s.lc.Debugf("参数从 %s 页加载", bank)
		return nil
	}
	return errors.NewCommonEdgeX(errors.KindEntityDoesNotExist, "no valid parameter bank", nil)
}

// IsNotFound 判断 Load 的错误是否表示两页都无效
func IsNotFound(err error) bool {
	return errors.Kind(err) == errors.KindEntityDoesNotExist
}

func (s *Store) addr(bank Bank) uint32 {
	if bank == BankA {
		return s.cfg.BankA
	}
	return s.cfg.BankB
}

func (s *Store) writeBank(bank Bank, record []byte) error {
	addr := s.addr(bank)
	if err := flash.ErasePageAt(s.f, addr); err != nil {
		return errors.NewCommonEdgeX(errors.KindServerError, fmt.Sprintf("erase bank %s", bank), err)
	}
	if _, err := flash.Program(s.f, addr, record); err != nil {
		return errors.NewCommonEdgeX(errors.KindServerError, fmt.Sprintf("program bank %s", bank), err)
	}
	return nil
}

func (s *Store) readBank(bank Bank) ([]int32, error) {
	words, err := flash.ReadWords(s.f, s.addr(bank), s.cfg.Count+2)
	if err != nil {
		return nil, err
	}
	if words[0] != Magic {
		return nil, fmt.Errorf("magic 0x%08X", words[0])
	}
	values := make([]int32, s.cfg.Count)
	for i := range values {
		values[i] = int32(words[1+i])
	}
	stored := words[1+s.cfg.Count]
	if calc := checksum.CRC32FlashInt32(values); calc != stored {
		return nil, fmt.Errorf("crc stored 0x%08X calc 0x%08X", stored, calc)
	}
	return values, nil
}

// Encode 生成一页的完整字节序列，长度是双字的整数倍
func Encode(values []int32) []byte {
	words := make([]uint32, 0, len(values)+3)
	words = append(words, Magic)
	for _, v := range values {
		words = append(words, uint32(v))
	}
	words = append(words, checksum.CRC32FlashInt32(values))
	if len(words)%2 != 0 {
		words = append(words, flash.ErasedWord)
	}
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func recordSize(count int) uint32 {
	words := count + 2
	if words%2 != 0 {
		words++
	}
	return uint32(4 * words)
}
