package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/edgexfoundry/go-mod-core-contracts/v4/clients/logger"
	"github.com/stretchr/testify/require"

	"github.com/linjuya-lu/device_relay_go/internal/flash"
	"github.com/linjuya-lu/device_relay_go/internal/iap"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"0x08005000", 0x08005000, true},
		{"134238208", 0x08005000, true},
		{"0xFFFFFFFF", 0xFFFFFFFF, true},
		{"0x100000000", 0, false},
		{"app", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAddress(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleLine(t *testing.T) {
	require.Equal(t, []byte("Board Status\r\n"), consoleLine([]string{"Board", "Status"}))
	require.Equal(t, []byte("Relay AllOn\r\n"), consoleLine([]string{"Relay AllOn"}))
}

// deviceLink 把帧直接交给升级处理器
type deviceLink struct {
	u *iap.Updater
}

func (d *deviceLink) Transact(_ context.Context, req []byte) ([]byte, error) {
	if bytes.Equal(req, []byte(iap.UpdateCommand)) {
		var out []byte
		for _, s := range d.u.Enter() {
			out = append(out, s.Line()...)
		}
		return out, nil
	}
	s, _ := d.u.Handle(req)
	return s.Line(), nil
}

func TestUpload(t *testing.T) {
	img, err := flash.NewMemory(flash.Geometry{Base: 0x08000000, Size: 64 * 1024, PageSize: 2048})
	require.NoError(t, err)
	u, err := iap.NewUpdater(img, 0x08005000, logger.NewMockClient())
	require.NoError(t, err)

	image := bytes.Repeat([]byte{0x12, 0x34, 0x56}, 700)
	c := iap.NewClient(&deviceLink{u: u}, logger.NewMockClient())
	require.NoError(t, upload(context.Background(), c, false, 0x08005000, image))

	got := make([]byte, len(image))
	require.NoError(t, img.Read(0x08005000, got))
	require.Equal(t, image, got)
}
