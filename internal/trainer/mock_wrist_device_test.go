package trainer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lowaak/dojo-trainer/internal/bt"
	"github.com/lowaak/dojo-trainer/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postCommand(wrist *MockWristDevice, name string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/command?name="+name, nil)
	wrist.Handler().ServeHTTP(rec, req)
	return rec
}

func TestMockWristDevice_CommandButtons(t *testing.T) {
	central := newTestCentral(t)
	wrist := central.Wrist()

	rec := postCommand(wrist, "nextMove")
	assert.Equal(t, http.StatusConflict, rec.Code, "not connected yet")

	require.NoError(t, central.Connect(wrist))
	got := make(chan string, 1)
	require.NoError(t, wrist.EnableNotifications(WristServiceUUID, WristCommandCharUUID, func(buf []byte) {
		got <- string(buf)
	}))

	rec = postCommand(wrist, "nextMove")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "nextMove", receive(t, got))

	rec = postCommand(wrist, "jump")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	wrist.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/command?name=nextMove", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMockWristDevice_StateShowsReceivedMessages(t *testing.T) {
	central := newTestCentral(t)
	wrist := central.Wrist()

	payload, err := remote.Message{Type: remote.MessageStep, Name: "Age Uke", StepIndex: 0, TotalSteps: 3}.Encode()
	require.NoError(t, err)
	assert.ErrorIs(t, wrist.WriteCharacteristicWithoutResponse(WristServiceUUID, WristMessageCharUUID, payload), bt.ErrNotConnected)

	require.NoError(t, central.Connect(wrist))
	require.NoError(t, wrist.WriteCharacteristicWithoutResponse(WristServiceUUID, WristMessageCharUUID, payload))
	assert.Error(t, wrist.WriteCharacteristicWithoutResponse(WristServiceUUID, WristCommandCharUUID, payload))
	assert.Error(t, wrist.WriteCharacteristicWithoutResponse(WristServiceUUID, WristMessageCharUUID, []byte("garbage")))

	rec := httptest.NewRecorder()
	wrist.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var state MockWristState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Connected)
	assert.False(t, state.Subscribed)
	assert.Equal(t, testWristAddress, state.Address)
	require.Len(t, state.Received, 1)
	assert.Equal(t, "Age Uke", state.Received[0].Message.Name)
	assert.Equal(t, 3, state.Received[0].Message.TotalSteps)
}

func TestMockWristDevice_Pages(t *testing.T) {
	central := newTestCentral(t)
	wrist := central.Wrist()

	rec := httptest.NewRecorder()
	wrist.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "startTraining")

	rec = httptest.NewRecorder()
	wrist.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMockWristDevice_ServesDebugPage(t *testing.T) {
	central := newTestCentral(t)
	wrist := central.Wrist()

	require.NoError(t, wrist.Start("127.0.0.1:0"))
	resp, err := http.Get(wrist.URL() + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMockCentral_ScanAndConnect(t *testing.T) {
	central := newTestCentral(t)
	require.NoError(t, central.Enable())
	assert.Empty(t, central.GetScanDevices())
	assert.Nil(t, central.GetDeviceByAddress("00:00:00:00:00:00"))

	ch := make(chan []bt.Device, 4)
	unregister := central.ListenToDeviceList(ch)
	defer unregister()

	central.StartScan([]string{WristServiceUUID})
	assert.True(t, central.IsScanning())
	for {
		devices := receive(t, ch)
		if len(devices) == 1 {
			assert.Equal(t, testWristAddress, devices[0].GetAddressString())
			break
		}
	}

	require.NoError(t, central.StopScan())
	assert.False(t, central.IsScanning())

	wrist := central.Wrist()
	require.NoError(t, central.Connect(wrist))
	assert.Len(t, central.GetConnectedDevices(), 1)
	require.NoError(t, central.Disconnect(wrist))
	assert.Empty(t, central.GetConnectedDevices())
}
