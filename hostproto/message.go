// Package hostproto defines the command/event messages exchanged with the game client bridge.
package hostproto

import (
	"fmt"
	"lobby-autohost/applog"

	"go.uber.org/zap"
)

type MessageCommand = string

const (
	// Game client -> autohost.
	MessageCommandLobbySetup MessageCommand = "LobbySetup"
	MessageCommandSlotUpdate MessageCommand = "SlotUpdate"
	MessageCommandChat       MessageCommand = "Chat"
	MessageCommandSwapNotice MessageCommand = "SwapNotice"
	MessageCommandLobbyLeft  MessageCommand = "LobbyLeft"

	// Autohost -> game client.
	MessageCommandOpenSlot   MessageCommand = "OpenSlot"
	MessageCommandCloseSlot  MessageCommand = "CloseSlot"
	MessageCommandBanSlot    MessageCommand = "BanSlot"
	MessageCommandKickSlot   MessageCommand = "KickSlot"
	MessageCommandSetTeam    MessageCommand = "SetTeam"
	MessageCommandSendChat   MessageCommand = "SendChat"
	MessageCommandStartGame  MessageCommand = "StartGame"
	MessageCommandLeaveLobby MessageCommand = "LeaveLobby"
)

type Message interface {
	GetCommand() MessageCommand
	GetArgs() []interface{}
	Build(args []interface{}) (Message, error)
}

// Inbound is a message the game client sends to us.
type Inbound interface {
	Message
	isInbound()
}

// Outbound is a command we send to the game client.
type Outbound interface {
	Message
	isOutbound()
}

// BaseMessage is an undecoded message as read from the stream.
type BaseMessage struct {
	Command MessageCommand
	Args    []interface{}
}

func (m *BaseMessage) GetCommand() MessageCommand {
	return m.Command
}

func (m *BaseMessage) GetArgs() []interface{} {
	return m.Args
}

func (m *BaseMessage) Build(_ []interface{}) (Message, error) {
	return m, fmt.Errorf("should not be called for base message")
}

type messageBuilder = func(args []interface{}) (Message, error)

var messagesRegistry = map[MessageCommand]func() messageBuilder{
	MessageCommandLobbySetup: func() messageBuilder { return new(LobbySetupMessage).Build },
	MessageCommandSlotUpdate: func() messageBuilder { return new(SlotUpdateMessage).Build },
	MessageCommandChat:       func() messageBuilder { return new(ChatMessage).Build },
	MessageCommandSwapNotice: func() messageBuilder { return new(SwapNoticeMessage).Build },
	MessageCommandLobbyLeft:  func() messageBuilder { return new(LobbyLeftMessage).Build },
	MessageCommandOpenSlot:   func() messageBuilder { return new(OpenSlotMessage).Build },
	MessageCommandCloseSlot:  func() messageBuilder { return new(CloseSlotMessage).Build },
	MessageCommandBanSlot:    func() messageBuilder { return new(BanSlotMessage).Build },
	MessageCommandKickSlot:   func() messageBuilder { return new(KickSlotMessage).Build },
	MessageCommandSetTeam:    func() messageBuilder { return new(SetTeamMessage).Build },
	MessageCommandSendChat:   func() messageBuilder { return new(SendChatMessage).Build },
	MessageCommandStartGame:  func() messageBuilder { return new(StartGameMessage).Build },
	MessageCommandLeaveLobby: func() messageBuilder { return new(LeaveLobbyMessage).Build },
}

// TryParse decodes the message into its concrete type. Unknown commands are returned as is.
func (m *BaseMessage) TryParse() (Message, error) {
	newBuilder, exists := messagesRegistry[m.Command]
	if !exists {
		return m, nil
	}

	msg, err := newBuilder()(m.Args)
	if err != nil {
		applog.Error("Failed to build bridge message",
			zap.String("command", m.Command),
			zap.Error(err),
		)
		return m, err
	}
	return msg, nil
}

func checkArgs(args []interface{}, expected int) error {
	if len(args) < expected {
		return fmt.Errorf("not enough arguments to parse (%d < %d)", len(args), expected)
	}
	return nil
}

func argString(args []interface{}, index int) (string, error) {
	v, ok := args[index].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", index, args[index])
	}
	return v, nil
}

func argInt(args []interface{}, index int) (int, error) {
	switch v := args[index].(type) {
	case int32:
		return int(v), nil
	case int:
		return v, nil
	case uint32:
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %d: expected int, got %T", index, args[index])
	}
}
