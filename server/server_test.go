package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/NYTimes/gziphandler"
	"github.com/prebid/header-adapters/config"
	"github.com/prebid/header-adapters/metrics"
	metricsconfig "github.com/prebid/header-adapters/metrics/config"
	prometheusmetrics "github.com/prebid/header-adapters/metrics/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdminServer(t *testing.T) {
	cfg := &config.Configuration{
		Host:      "prebid.com",
		AdminPort: 6060,
		Port:      8000,
	}
	server := newAdminServer(cfg, http.HandlerFunc(handler))
	assert.Equal(t, "prebid.com:6060", server.Addr)
}

func TestNewMainServer(t *testing.T) {
	cfg := &config.Configuration{
		Host:      "prebid.com",
		AdminPort: 6060,
		Port:      8000,
	}
	server := newMainServer(cfg, http.HandlerFunc(handler))
	assert.Equal(t, "prebid.com:8000", server.Addr)
}

func TestNewMainServerGzip(t *testing.T) {
	cfg := &config.Configuration{Port: 8000, EnableGzip: true}
	server := newMainServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("compressible ", gziphandler.DefaultMinSize)))
	}))

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rw := httptest.NewRecorder()
	server.Handler.ServeHTTP(rw, req)

	assert.Equal(t, "gzip", rw.Header().Get("Content-Encoding"))
}

func TestNewPrometheusServer(t *testing.T) {
	cfg := &config.Configuration{
		Host: "prebid.com",
		Metrics: config.Metrics{
			Prometheus: config.PrometheusMetrics{Port: 9090, Namespace: "ha", TimeoutMillisRaw: 1000},
		},
	}
	proMetrics := prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
	proMetrics.RecordRequest(metrics.Labels{RType: metrics.ReqTypeValidate, RequestStatus: metrics.RequestStatusOK})

	server := newPrometheusServer(cfg, &metricsconfig.DetailedMetricsEngine{
		MetricsEngine:     proMetrics,
		PrometheusMetrics: proMetrics,
	})
	assert.Equal(t, "prebid.com:9090", server.Addr)

	rw := httptest.NewRecorder()
	server.Handler.ServeHTTP(rw, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `ha_requests{request_status="ok",request_type="validate"} 1`)
}

func TestServerShutdown(t *testing.T) {
	server := &http.Server{}
	ln := newMockListener()

	stopper := make(chan os.Signal)
	done := make(chan struct{})
	go shutdownAfterSignals(server, stopper, done)
	go server.Serve(ln)

	stopper <- os.Interrupt
	<-done

	// If the test didn't hang, then we know server.Shutdown really _did_ return, and shutdownAfterSignals
	// passed the message along as expected.
}

func TestWait(t *testing.T) {
	inbound := make(chan os.Signal)
	chan1 := make(chan os.Signal)
	chan2 := make(chan os.Signal)
	chan3 := make(chan os.Signal)
	done := make(chan struct{})

	go forwardSignal(t, done, chan1)
	go forwardSignal(t, done, chan2)
	go forwardSignal(t, done, chan3)

	go func(chan os.Signal) {
		inbound <- os.Interrupt
	}(inbound)

	wait(inbound, done, chan1, chan2, chan3)
	// If this doesn't hang, then wait() is sending and receiving messages as expected.
}

func TestMonitorableListener(t *testing.T) {
	me := &metrics.MetricsEngineMock{}
	me.On("RecordConnectionAccept", true).Return()
	me.On("RecordConnectionClose", true).Return()

	ln, err := newListener("127.0.0.1:0", me)
	require.NoError(t, err)
	defer ln.Close()
	_, monitored := ln.(*monitorableListener)
	require.True(t, monitored)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	conn, ok := <-accepted
	require.True(t, ok, "the listener should accept the connection")
	require.NoError(t, conn.Close())

	me.AssertCalled(t, "RecordConnectionAccept", true)
	me.AssertCalled(t, "RecordConnectionClose", true)
}

func TestNewListenerWithoutMetrics(t *testing.T) {
	ln, err := newListener("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer ln.Close()

	_, keepAlive := ln.(*tcpKeepAliveListener)
	assert.True(t, keepAlive)
}

func handler(w http.ResponseWriter, req *http.Request) {
}

// forwardSignal is basically a working mock for shutdownAfterSignals().
// It is used to test wait() effectively
func forwardSignal(t *testing.T, outbound chan<- struct{}, inbound <-chan os.Signal) {
	var s struct{}
	sig := <-inbound
	if sig != os.Interrupt {
		t.Errorf("Unexpected signal: %s\n", sig.String())
	}
	outbound <- s
}

// mockListener never yields a connection. Accept blocks until the listener is closed.
type mockListener struct {
	once   sync.Once
	closed chan struct{}
}

func newMockListener() *mockListener {
	return &mockListener{closed: make(chan struct{})}
}

func (l *mockListener) Accept() (net.Conn, error) {
	<-l.closed
	return nil, net.ErrClosed
}

func (l *mockListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *mockListener) Addr() net.Addr {
	return &net.TCPAddr{}
}
