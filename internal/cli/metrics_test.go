package cli

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// syncBuffer — буфер логов, в который пишет горутина сервера.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeMetrics_ServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	var logs syncBuffer
	stop := serveMetricsOn(ln, reg, slog.New(slog.NewTextHandler(&logs, nil)))

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected go collector metrics")
	}

	stop()
	if strings.Contains(logs.String(), "shutdown error") {
		t.Errorf("unexpected shutdown error: %s", logs.String())
	}
}

func TestServeMetrics_LogsShutdownError(t *testing.T) {
	prev := metricsShutdownTimeout
	metricsShutdownTimeout = 50 * time.Millisecond
	defer func() { metricsShutdownTimeout = prev }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var logs syncBuffer
	stop := serveMetricsOn(ln, prometheus.NewRegistry(), slog.New(slog.NewTextHandler(&logs, nil)))

	// Недописанный запрос держит соединение активным дольше таймаута остановки
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET /metrics HTTP/1.1\r\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	stop()
	if !strings.Contains(logs.String(), "metrics server shutdown error") {
		t.Errorf("expected shutdown error in logs, got: %s", logs.String())
	}
}
