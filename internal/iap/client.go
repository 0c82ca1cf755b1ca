package iap

import (
	"context"
	"fmt"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/v4/errors"
)

// UpdateCommand 应用模式下请求进入升级的文本命令
const UpdateCommand = "Firmware Update\r\n"

// Transactor 发送一帧并等待设备的一帧应答
type Transactor interface {
	Transact(ctx context.Context, req []byte) ([]byte, error)
}

// Client 上位机侧的升级客户端
type Client struct {
	link Transactor
	lc   logger.LoggingClient

	// ChunkSize 每帧数据长度，须为 8 的倍数且不超过 MaxPayload
	ChunkSize int
	// Retries CRCERR 时的重发次数
	Retries int
	// Progress 每写完一帧调用
	Progress func(written, total int)
}

// NewClient 返回默认 1024 字节分包、CRC 错误重发 3 次的客户端
func NewClient(link Transactor, lc logger.LoggingClient) *Client {
	return &Client{link: link, lc: lc, ChunkSize: MaxPayload, Retries: 3}
}

// EnterUpdate 发送升级命令并等待 "Update Mode"
func (c *Client) EnterUpdate(ctx context.Context) error {
	reply, err := c.link.Transact(ctx, []byte(UpdateCommand))
	if err != nil {
		return fmt.Errorf("request update mode: %w", err)
	}
	sts := ParseStatus(reply)
	if len(sts) == 0 || sts[0] != StatusUpdateMode {
		return statusErr("enter update mode", reply)
	}
	for _, s := range sts[1:] {
		if s == StatusFlashEraseErr {
			return statusErr("erase application", reply)
		}
	}
	return nil
}

// WriteFrame 发送一帧并检查应答
func (c *Client) WriteFrame(ctx context.Context, addr uint32, payload []byte, want Status) error {
	frame, err := EncodeFrame(addr, payload)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		reply, err := c.link.Transact(ctx, frame)
		if err != nil {
			return fmt.Errorf("frame 0x%08X: %w", addr, err)
		}
		sts := ParseStatus(reply)
		if len(sts) == 1 && sts[0] == want {
			return nil
		}
		if len(sts) == 1 && sts[0] == StatusCRCErr && attempt < c.Retries {
			c.lc.Warnf("帧 0x%08X 校验错误, 重发 (%d)", addr, attempt+1)
			continue
		}
		return statusErr(fmt.Sprintf("frame 0x%08X", addr), reply)
	}
}

// Upload 把 image 从 base 开始逐帧写入，最后发送结束帧
func (c *Client) Upload(ctx context.Context, base uint32, image []byte) error {
	if c.ChunkSize <= 0 || c.ChunkSize > MaxPayload || c.ChunkSize%8 != 0 {
		return errors.NewCommonEdgeX(errors.KindContractInvalid,
			fmt.Sprintf("invalid chunk size %d", c.ChunkSize), nil)
	}
	for off := 0; off < len(image); off += c.ChunkSize {
		end := off + c.ChunkSize
		if end > len(image) {
			end = len(image)
		}
		if err := c.WriteFrame(ctx, base+uint32(off), image[off:end], StatusOK); err != nil {
			return err
		}
		if c.Progress != nil {
			c.Progress(end, len(image))
		}
	}
	if err := c.WriteFrame(ctx, EndAddress, nil, StatusDone); err != nil {
		return err
	}
	c.lc.Infof("升级完成, 共 %d 字节", len(image))
	return nil
}

func statusErr(op string, reply []byte) error {
	return errors.NewCommonEdgeX(errors.KindCommunicationError,
		fmt.Sprintf("%s: device replied %q", op, reply), nil)
}
