package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linjuya-lu/device_relay_go/internal/modbus"
)

const minimal = `
Ports:
  - name: host
    device: /dev/ttyUSB0
`

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	require.Equal(t, uint8(3), cfg.Board.Station)
	require.Equal(t, 58, cfg.Board.Registers)
	require.Equal(t, "host", cfg.Board.HostPort)
	require.Equal(t, "uart", cfg.Ports[0].Type)
	require.Equal(t, 115200, cfg.Ports[0].Baudrate)
	require.Equal(t, 100, cfg.Ports[0].TimeoutMs)

	require.Equal(t, uint32(0x08000000), cfg.Flash.Base)
	require.Equal(t, uint32(256*1024), cfg.Flash.Size)
	require.Equal(t, uint32(2048), cfg.Flash.PageSize)
	require.Equal(t, uint32(0x08005000), cfg.Flash.AppBase)

	require.Equal(t, uint32(0x0803F000), cfg.Params.BankA)
	require.Equal(t, uint32(0x0803F800), cfg.Params.BankB)
	require.Equal(t, 50, cfg.Params.Count)

	require.False(t, cfg.Poll.Enabled)
	require.Equal(t, modbus.FuncReadHolding, cfg.Poll.Function)
	require.Equal(t, 8, cfg.Poll.Offset)
	require.Equal(t, ":9105", cfg.Metrics.Listen)
}

func TestShippedConfig(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	cfg, err := Load(filepath.Join(filepath.Dir(file), "..", "..", "res", "board.yaml"))
	require.NoError(t, err)

	require.Len(t, cfg.Ports, 2)
	host, ok := cfg.PortByName("host")
	require.True(t, ok)
	require.Equal(t, "rs485", host.Type)
	require.Equal(t, 504, host.DEPin)
	require.Len(t, cfg.Board.Relays.Pins, 8)
	require.True(t, cfg.Poll.Enabled)
	require.Equal(t, "V2.0", cfg.Board.Info.Version)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no host port", "Ports: []\n"},
		{"duplicate port", minimal + "  - name: host\n"},
		{"unknown peripheral", minimal + "Board:\n  peripheralPort: adc\n"},
		{"station", minimal + "Board:\n  station: 250\n"},
		{"registers", minimal + "Board:\n  registers: 4\n"},
		{"relay pins", minimal + "Board:\n  relays:\n    pins: [1, 2]\n"},
		{"app base", minimal + "Flash:\n  appBase: 0x08005004\n"},
		{"page size", minimal + "Flash:\n  pageSize: 1000\n"},
		{"defaults", minimal + "Params:\n  count: 2\n  defaults: [1]\n"},
		{"poll without port", minimal + "Poll:\n  enabled: true\n"},
		{"mqtt broker", minimal + "MQTT:\n  enabled: true\n"},
		{"unknown key", minimal + "Bogus: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigGlobal(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	require.NoError(t, LoadConfig(filepath.Join(filepath.Dir(file), "..", "..", "res", "board.yaml")))
	require.NotNil(t, BoardCfg)
	p, ok := GetPort("adc")
	require.True(t, ok)
	require.Equal(t, 9600, p.Baudrate)
	_, ok = GetPort("missing")
	require.False(t, ok)
}
