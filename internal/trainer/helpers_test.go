package trainer

import (
	"io"
	"log"
	"testing"
	"time"
)

const (
	testWristAddress = "C0:FF:EE:00:00:01"
	testWristName    = "Dojo Wrist"
	eventTimeout     = 2 * time.Second
)

func newTestLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestCentral(t *testing.T) *MockCentral {
	t.Helper()
	logger := newTestLogger()
	central := NewMockCentral(logger, NewMockWristDevice(logger, testWristAddress, testWristName))
	t.Cleanup(central.Shutdown)
	return central
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(eventTimeout):
		t.Fatal("Timeout waiting for event")
	}
	var zero T
	return zero
}
