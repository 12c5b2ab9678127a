package bt

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func newTestDevice(t *testing.T) *device {
	t.Helper()
	return newDevice(log.New(io.Discard, "", 0), bluetooth.Address{}, time.Second)
}

func TestMatchesServiceFilter(t *testing.T) {
	filter := map[string]struct{}{"6e400001-b5a3-f393-e0a9-e50e24dcca9e": {}}

	assert.True(t, matchesServiceFilter([]string{"6E400001-B5A3-F393-E0A9-E50E24DCCA9E"}, filter))
	assert.False(t, matchesServiceFilter([]string{"0000180d-0000-1000-8000-00805f9b34fb"}, filter))
	assert.False(t, matchesServiceFilter(nil, filter))
	assert.True(t, matchesServiceFilter(nil, nil))
}

func TestDeviceState_String(t *testing.T) {
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Unknown", DeviceState(9).String())
}

func TestDevice_DefaultsBeforeScan(t *testing.T) {
	d := newTestDevice(t)

	assert.Equal(t, "Unknown", d.GetLocalName())
	_, err := d.GetScanRSSI()
	assert.Error(t, err)
	assert.False(t, d.IsRecentlyScanned())
	assert.False(t, d.IsConnected())
	assert.Equal(t, Disconnected, d.GetState())

	d.serviceUUIDs = []string{"6e400001-b5a3-f393-e0a9-e50e24dcca9e"}
	assert.True(t, d.HasServiceUUID("6E400001-B5A3-F393-E0A9-E50E24DCCA9E"))
}

func TestDevice_OperationsNeedConnection(t *testing.T) {
	d := newTestDevice(t)

	err := d.WriteCharacteristicWithoutResponse(
		"6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400002-b5a3-f393-e0a9-e50e24dcca9e", []byte("{}"))
	assert.ErrorIs(t, err, ErrNotConnected)

	err = d.EnableNotifications("not-a-uuid", "6e400003-b5a3-f393-e0a9-e50e24dcca9e", nil)
	assert.ErrorContains(t, err, "invalid service UUID")
}

func TestDevice_WaitForConnectionHonoursContext(t *testing.T) {
	d := newTestDevice(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.WaitForConnection(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDevice_DisconnectClearsState(t *testing.T) {
	d := newTestDevice(t)
	d.setState(Connecting)
	assert.Equal(t, Connecting, d.GetState())

	d.setConnected(nil)
	assert.Equal(t, Disconnected, d.GetState())
	assert.Equal(t, 0, d.characteristics.Len())
}

type fakeCommandChar struct {
	commands [][]byte
}

func (c *fakeCommandChar) WriteWithoutResponse(p []byte) (int, error) {
	c.commands = append(c.commands, p)
	return len(p), nil
}

type fakeRequestChar struct {
	fakeCommandChar
	requests [][]byte
}

func (c *fakeRequestChar) Write(p []byte) (int, error) {
	c.requests = append(c.requests, p)
	return len(p), nil
}

func TestWriteValue_FallsBackToCommandWrite(t *testing.T) {
	char := &fakeCommandChar{}

	require.NoError(t, writeValue(char, []byte("a"), true))
	require.NoError(t, writeValue(char, []byte("b"), false))

	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, char.commands)
}

func TestWriteValue_UsesRequestWriteWhenAvailable(t *testing.T) {
	char := &fakeRequestChar{}

	require.NoError(t, writeValue(char, []byte("ack"), true))
	require.NoError(t, writeValue(char, []byte("cmd"), false))

	assert.Equal(t, [][]byte{[]byte("ack")}, char.requests)
	assert.Equal(t, [][]byte{[]byte("cmd")}, char.commands)
}
