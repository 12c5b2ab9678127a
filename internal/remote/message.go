// Package remote relays session progress to the companion wrist device and
// turns its inbound commands into advance signals.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTransportClosed is returned by a Transport after Close
var ErrTransportClosed = errors.New("remote transport closed")

// MessageType tags outbound messages
type MessageType string

const (
	MessageStep       MessageType = "step"
	MessageCompletion MessageType = "completion"
)

// Message is the outbound payload. It is JSON encoded on the wire.
type Message struct {
	Type       MessageType `json:"type"`
	Name       string      `json:"name,omitempty"`
	StepIndex  int         `json:"stepIndex"`
	TotalSteps int         `json:"totalSteps"`
}

// Encode renders m in its wire format
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire-format message
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch m.Type {
	case MessageStep, MessageCompletion:
		return m, nil
	default:
		return Message{}, fmt.Errorf("decode message: unknown type %q", m.Type)
	}
}

// Command is an inbound instruction from the remote device
type Command string

const (
	CommandNextMove      Command = "nextMove"
	CommandStartTraining Command = "startTraining"
	CommandEndTraining   Command = "endTraining"
)

// Valid reports whether c is one of the known commands
func (c Command) Valid() bool {
	switch c {
	case CommandNextMove, CommandStartTraining, CommandEndTraining:
		return true
	}
	return false
}

type commandEnvelope struct {
	Command Command `json:"command"`
}

// ParseCommand accepts either a bare command string ("nextMove") or a JSON
// object of the form {"command":"nextMove"}. Trailing NUL padding from fixed
// size characteristic writes is ignored.
func ParseCommand(data []byte) (Command, error) {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, "{") {
		var env commandEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return "", fmt.Errorf("parse command: %w", err)
		}
		raw = string(env.Command)
	}
	cmd := Command(strings.Trim(raw, "\"\x00"))
	if !cmd.Valid() {
		return "", fmt.Errorf("parse command: unknown command %q", cmd)
	}
	return cmd, nil
}
