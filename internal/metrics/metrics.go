// Package metrics 以 Prometheus 格式导出帧、异常、升级状态和参数区的计数。
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linjuya-lu/device_relay_go/internal/iap"
	"github.com/linjuya-lu/device_relay_go/internal/paramstore"
	"github.com/linjuya-lu/device_relay_go/internal/relay"
)

const namespace = "relay_board"

// Metrics 持有一个独立的 Registry，便于测试
type Metrics struct {
	reg        *prometheus.Registry
	requests   *prometheus.CounterVec
	exceptions *prometheus.CounterVec
	iapStatus  *prometheus.CounterVec
	storeOps   *prometheus.CounterVec
	polls      *prometheus.CounterVec
	relays     *prometheus.GaugeVec
	mode       prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modbus_requests_total",
			Help:      "Modbus requests addressed to this station, by function code.",
		}, []string{"function"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modbus_exceptions_total",
			Help:      "Modbus exception replies, by function and exception code.",
		}, []string{"function", "code"}),
		iapStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iap_replies_total",
			Help:      "IAP status replies sent in update mode.",
		}, []string{"status"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paramstore_operations_total",
			Help:      "Parameter store saves and loads, by result.",
		}, []string{"op", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peripheral_polls_total",
			Help:      "Peripheral poll cycles, by result.",
		}, []string{"result"}),
		relays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_on",
			Help:      "Relay output state (1 = on).",
		}, []string{"relay"}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "update_mode",
			Help:      "1 while the board is in update mode.",
		}),
	}
	m.reg.MustRegister(m.requests, m.exceptions, m.iapStatus, m.storeOps, m.polls, m.relays, m.mode)
	return m
}

// Registry 返回内部 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func hexCode(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

// Request 实现 modbus.Observer
func (m *Metrics) Request(fc byte) {
	m.requests.WithLabelValues(hexCode(fc)).Inc()
}

// Exception 实现 modbus.Observer
func (m *Metrics) Exception(fc, code byte) {
	m.exceptions.WithLabelValues(hexCode(fc), hexCode(code)).Inc()
}

// IAPStatus 记录一次升级应答
func (m *Metrics) IAPStatus(s iap.Status) {
	m.iapStatus.WithLabelValues(string(s)).Inc()
}

// StoreSaved 记录一次参数保存
func (m *Metrics) StoreSaved(err error) {
	m.storeOps.WithLabelValues("save", result(err)).Inc()
}

// StoreLoaded 记录一次从某页加载的结果
func (m *Metrics) StoreLoaded(bank paramstore.Bank, ok bool) {
	r := "invalid"
	if ok {
		r = "ok"
	}
	m.storeOps.WithLabelValues("load_"+bank.String(), r).Inc()
}

// Polled 记录一次外设轮询
func (m *Metrics) Polled(err error) {
	m.polls.WithLabelValues(result(err)).Inc()
}

// SetRelays 用状态字刷新继电器指标（bit0=K1）
func (m *Metrics) SetRelays(word uint16) {
	for i := 0; i < relay.Count; i++ {
		m.relays.WithLabelValues(strconv.Itoa(i + 1)).Set(float64((word >> i) & 1))
	}
}

// SetUpdateMode 记录当前运行模式
func (m *Metrics) SetUpdateMode(on bool) {
	if on {
		m.mode.Set(1)
	} else {
		m.mode.Set(0)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve 在 listen 上提供 /metrics，直到 ctx 结束
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
