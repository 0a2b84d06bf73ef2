package hostproto

import (
	"encoding/json"
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/snapshot"

	"go.uber.org/zap"
)

// LobbySetupMessage carries the metadata and full roster when the client enters a lobby.
type LobbySetupMessage struct {
	Setup snapshot.Setup
}

func NewLobbySetupMessage(setup snapshot.Setup) *LobbySetupMessage {
	return &LobbySetupMessage{Setup: setup}
}

func (m *LobbySetupMessage) GetCommand() MessageCommand {
	return MessageCommandLobbySetup
}

func (m *LobbySetupMessage) GetArgs() []interface{} {
	return []interface{}{marshalArg(m.Setup, "LobbySetupMessage")}
}

func (m *LobbySetupMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 1); err != nil {
		return m, err
	}

	data, err := argString(args, 0)
	if err != nil {
		return m, err
	}

	m.Setup = snapshot.Setup{}
	if err = json.Unmarshal([]byte(data), &m.Setup); err != nil {
		return nil, fmt.Errorf("failed to parse lobby setup message: %w", err)
	}
	return m, nil
}

func (m *LobbySetupMessage) isInbound() {}

// SlotUpdateMessage carries the slots that changed since the last payload.
type SlotUpdateMessage struct {
	Slots []snapshot.Slot
}

func NewSlotUpdateMessage(slots ...snapshot.Slot) *SlotUpdateMessage {
	return &SlotUpdateMessage{Slots: slots}
}

func (m *SlotUpdateMessage) GetCommand() MessageCommand {
	return MessageCommandSlotUpdate
}

func (m *SlotUpdateMessage) GetArgs() []interface{} {
	return []interface{}{marshalArg(m.Slots, "SlotUpdateMessage")}
}

func (m *SlotUpdateMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 1); err != nil {
		return m, err
	}

	data, err := argString(args, 0)
	if err != nil {
		return m, err
	}

	m.Slots = nil
	if err = json.Unmarshal([]byte(data), &m.Slots); err != nil {
		return nil, fmt.Errorf("failed to parse slot update message: %w", err)
	}
	return m, nil
}

func (m *SlotUpdateMessage) isInbound() {}

// LobbyLeftMessage reports that the client is no longer in the lobby.
type LobbyLeftMessage struct {
	Reason string
}

func NewLobbyLeftMessage(reason string) *LobbyLeftMessage {
	return &LobbyLeftMessage{Reason: reason}
}

func (m *LobbyLeftMessage) GetCommand() MessageCommand {
	return MessageCommandLobbyLeft
}

func (m *LobbyLeftMessage) GetArgs() []interface{} {
	return []interface{}{m.Reason}
}

func (m *LobbyLeftMessage) Build(args []interface{}) (Message, error) {
	if len(args) == 0 {
		m.Reason = ""
		return m, nil
	}

	reason, err := argString(args, 0)
	if err != nil {
		return m, err
	}
	m.Reason = reason
	return m, nil
}

func (m *LobbyLeftMessage) isInbound() {}

func marshalArg(v interface{}, name string) string {
	data, err := json.Marshal(v)
	if err != nil {
		applog.Error("Failed to marshal "+name, zap.Error(err))
		return "{}"
	}
	return string(data)
}
