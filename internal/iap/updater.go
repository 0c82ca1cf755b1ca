package iap

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"

	"github.com/linjuya-lu/device_relay_go/internal/checksum"
	"github.com/linjuya-lu/device_relay_go/internal/flash"
)

// DefaultHoldTimeout 未收完的帧在没有新数据时最多保留多久
const DefaultHoldTimeout = time.Second

// Updater 升级模式下的帧处理器。
//
// 每次收到的数据先追加到内部缓冲区：头部尚未到齐或长度不足时保持不动，
// 等待后续数据；完整的一帧处理后缓冲区清空，帧后多余的字节丢弃。
//
// 被截断的帧会等待剩余字节。若上位机在保留时间内就发出下一帧，
// 两帧会拼在一起并得到一次 CRCERR，上位机重发后恢复；
// 超过保留时间没有新数据时，残留字节在下次收到数据前被丢弃。
type Updater struct {
	f       flash.Flash
	appBase uint32
	end     uint32
	lc      logger.LoggingClient

	mu       sync.Mutex
	buf      []byte
	last     time.Time
	hold     time.Duration
	now      func() time.Time
	onStatus func(Status)
}

// NewUpdater appBase 为应用程序起始地址，须按页对齐
func NewUpdater(f flash.Flash, appBase uint32, lc logger.LoggingClient) (*Updater, error) {
	g := f.Geometry()
	if !g.Contains(appBase, 1) {
		return nil, fmt.Errorf("iap: app base 0x%08X outside flash", appBase)
	}
	if (appBase-g.Base)%g.PageSize != 0 {
		return nil, fmt.Errorf("iap: app base 0x%08X not page aligned", appBase)
	}
	return &Updater{
		f:       f,
		appBase: appBase,
		end:     g.End(),
		lc:      lc,
		buf:     make([]byte, 0, MaxFrameSize),
		hold:    DefaultHoldTimeout,
		now:     time.Now,
	}, nil
}

// SetHoldTimeout 设置未收完帧的保留时间，0 表示一直保留
func (u *Updater) SetHoldTimeout(d time.Duration) {
	u.mu.Lock()
	u.hold = d
	u.mu.Unlock()
}

// SetStatusHook 每个状态应答发出前调用
func (u *Updater) SetStatusHook(fn func(Status)) {
	u.onStatus = fn
}

// AppBase 应用程序起始地址
func (u *Updater) AppBase() uint32 {
	return u.appBase
}

// Enter 进入升级模式：先通告 "Update Mode"，再擦除整个应用区。
// 擦除失败时追加 FLASH_ERASE_ERR，但升级循环照常进行。
func (u *Updater) Enter() []Status {
	u.Reset()
	out := []Status{u.status(StatusUpdateMode)}
	u.lc.Infof("进入升级模式, 擦除应用区 0x%08X-0x%08X", u.appBase, u.end)
	if err := flash.EraseRange(u.f, u.appBase, u.end-u.appBase); err != nil {
		u.lc.Errorf("应用区擦除失败: %v", err)
		out = append(out, u.status(StatusFlashEraseErr))
	}
	return out
}

// Reset 丢弃尚未收完的数据
func (u *Updater) Reset() {
	u.mu.Lock()
	u.buf = u.buf[:0]
	u.mu.Unlock()
}

// Pending 缓冲区中等待的字节数
func (u *Updater) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.buf)
}

// Handle 处理一次接收到的数据。
// status 为空表示不应答；done 为 true 表示收到结束帧，调用方应跳转到应用程序。
func (u *Updater) Handle(chunk []byte) (status Status, done bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if len(u.buf) > 0 && u.hold > 0 && now.Sub(u.last) > u.hold {
		u.lc.Warnf("iap 丢弃超时未完成的帧 (%d 字节)", len(u.buf))
		u.buf = u.buf[:0]
	}
	u.last = now
	u.buf = append(u.buf, chunk...)
	if !headerPrefix(u.buf) {
		u.lc.Debugf("iap 丢弃无效数据: % X", u.buf)
		u.buf = u.buf[:0]
		return "", false
	}
	if len(u.buf) < headerSize {
		return "", false
	}
	n := declaredLength(u.buf)
	if n > MaxPayload {
		u.buf = u.buf[:0]
		return u.status(StatusLenErr), false
	}
	total := MinFrameSize + n
	if len(u.buf) < total {
		return "", false
	}
	frame := make([]byte, total)
	copy(frame, u.buf)
	u.buf = u.buf[:0]

	crc := binary.LittleEndian.Uint16(frame[total-2:])
	if checksum.CRC16Modbus(frame[2:total-2]) != crc {
		return u.status(StatusCRCErr), false
	}
	f := Frame{
		Address: binary.LittleEndian.Uint32(frame[4:8]),
		Payload: frame[headerSize : total-2],
	}
	if f.IsEnd() {
		u.lc.Infof("升级数据接收完成")
		return u.status(StatusDone), true
	}
	if f.Address < u.appBase || f.Address >= u.end || uint64(f.Address)+uint64(len(f.Payload)) > uint64(u.end) {
		return u.status(StatusAddrErr), false
	}
	if _, err := flash.Program(u.f, f.Address, f.Payload); err != nil {
		u.lc.Errorf("写入 Flash 失败: %v", err)
		return u.status(StatusFlashWrErr), false
	}
	u.lc.Debugf("写入 0x%08X, %d 字节", f.Address, len(f.Payload))
	return u.status(StatusOK), false
}

func (u *Updater) status(s Status) Status {
	if s != StatusOK && s != StatusDone && s != StatusUpdateMode {
		u.lc.Warnf("iap 应答 %s", s)
	}
	if u.onStatus != nil {
		u.onStatus(s)
	}
	return s
}
