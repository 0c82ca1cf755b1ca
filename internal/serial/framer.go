package serial

import (
	"context"
	"errors"
	"io"
)

// Framer 按空闲线路切分帧：收到至少一个字节后，
// 一次读超时内没有新数据即认为一帧结束。
type Framer struct {
	r   io.Reader
	max int
	buf []byte
	tmp []byte
}

// NewFramer max 为单帧上限，达到上限时立即交付
func NewFramer(r io.Reader, max int) *Framer {
	return &Framer{
		r:   r,
		max: max,
		buf: make([]byte, 0, max),
		tmp: make([]byte, max),
	}
}

// Next 阻塞直到一帧完成或 ctx 结束。
// 底层 Reader 须设置读超时，否则 ctx 只能在下一次 Read 返回后生效。
func (f *Framer) Next(ctx context.Context) ([]byte, error) {
	f.buf = f.buf[:0]
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.r.Read(f.tmp[:f.max-len(f.buf)])
		if n > 0 {
			f.buf = append(f.buf, f.tmp[:n]...)
			if len(f.buf) >= f.max {
				return f.frame(), nil
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		// 空闲
		if len(f.buf) > 0 {
			return f.frame(), nil
		}
	}
}

func (f *Framer) frame() []byte {
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out
}
