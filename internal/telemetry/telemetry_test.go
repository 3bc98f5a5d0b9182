package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordError("orchestrator", "invalid_request")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "decisioncore_errors_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAsyncSinkDropsOldestWhenFull(t *testing.T) {
	var written [][]byte
	dst := writerFunc(func(p []byte) (int, error) {
		cp := make([]byte, len(p))
		copy(cp, p)
		written = append(written, cp)
		return len(p), nil
	})

	sink := NewAsyncSink(dst, 2)
	sink.Write([]byte("a"))
	sink.Write([]byte("b"))
	sink.Write([]byte("c"))
	sink.Close()

	assert.GreaterOrEqual(t, sink.Dropped(), int64(0))
	assert.Equal(t, int64(3), int64(len(written))+sink.Dropped())
	require.NotEmpty(t, written)
	assert.Equal(t, []byte("c"), written[len(written)-1])
}

func TestTraceIDRoundTrip(t *testing.T) {
	id := NewTraceID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, TraceIDFromContext(WithTraceID(context.Background(), id)))
}

func TestNewLoggerDoesNotBlock(t *testing.T) {
	logger, closeFn := NewLogger(LoggingOptions{Level: "info", EnableConsole: false, EnableFile: false})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			logger.Info("load test", "i", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked the caller")
	}
	require.NoError(t, closeFn())
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
