package trainer

import (
	"context"
	"testing"
	"time"

	"github.com/lowaak/dojo-trainer/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectedHandler(t *testing.T) (*WristHandler, *MockCentral) {
	t.Helper()
	central := newTestCentral(t)
	handler := NewWristHandler(central, newTestLogger(), time.Second)
	require.NoError(t, handler.Connect(context.Background(), testWristAddress))
	return handler, central
}

func TestWristHandler_ConnectUnknownDevice(t *testing.T) {
	central := newTestCentral(t)
	handler := NewWristHandler(central, newTestLogger(), time.Second)

	assert.Error(t, handler.Connect(context.Background(), "00:00:00:00:00:00"))
	assert.Empty(t, handler.ConnectedAddress())
	assert.ErrorIs(t, handler.Disconnect(), ErrWristNotConnected)
}

func TestWristHandler_SendWritesToWrist(t *testing.T) {
	handler, central := newConnectedHandler(t)
	assert.Equal(t, testWristAddress, handler.ConnectedAddress())

	require.NoError(t, handler.Send(context.Background(), remote.Message{
		Type: remote.MessageStep, Name: "Gedan Barai", StepIndex: 1, TotalSteps: 4,
	}))
	require.NoError(t, handler.Send(context.Background(), remote.Message{
		Type: remote.MessageCompletion, TotalSteps: 4,
	}))

	received := central.Wrist().Received()
	require.Len(t, received, 2)
	assert.Equal(t, "Gedan Barai", received[0].Message.Name)
	assert.Equal(t, remote.MessageCompletion, received[1].Message.Type)
}

func TestWristHandler_CommandsReachListeners(t *testing.T) {
	handler, central := newConnectedHandler(t)

	ch := make(chan remote.Command, 4)
	unregister := handler.Listen(ch)
	defer unregister()

	require.NoError(t, central.Wrist().PressCommand(remote.CommandNextMove))
	require.NoError(t, central.Wrist().PressCommand(remote.CommandEndTraining))
	assert.Equal(t, remote.CommandNextMove, receive(t, ch))
	assert.Equal(t, remote.CommandEndTraining, receive(t, ch))
}

func TestWristHandler_DroppedLinkIsForgotten(t *testing.T) {
	handler, central := newConnectedHandler(t)

	require.NoError(t, central.Disconnect(central.Wrist()))
	err := handler.Send(context.Background(), remote.Message{Type: remote.MessageStep, Name: "Mae Geri"})
	assert.ErrorIs(t, err, ErrWristNotConnected)
	assert.Empty(t, handler.ConnectedAddress())
}

func TestWristHandler_Disconnect(t *testing.T) {
	handler, central := newConnectedHandler(t)

	require.NoError(t, handler.Disconnect())
	assert.False(t, central.Wrist().IsConnected())
	assert.ErrorIs(t, handler.Send(context.Background(), remote.Message{Type: remote.MessageStep}), ErrWristNotConnected)
}

func TestWristHandler_DrivesNotifier(t *testing.T) {
	handler, central := newConnectedHandler(t)
	notifier := remote.NewNotifier(handler, newTestLogger(), time.Second)
	defer notifier.Close()

	advanced := make(chan struct{}, 1)
	unregister := notifier.OnRemoteAdvance(func() { advanced <- struct{}{} })
	defer unregister()

	require.NoError(t, central.Wrist().PressCommand(remote.CommandNextMove))
	receive(t, advanced)

	notifier.SendStepName("Soto Uke", 2, 5)
	require.Eventually(t, func() bool {
		return len(central.Wrist().Received()) == 1
	}, eventTimeout, 10*time.Millisecond)
	assert.Equal(t, "Soto Uke", central.Wrist().Received()[0].Message.Name)
}
