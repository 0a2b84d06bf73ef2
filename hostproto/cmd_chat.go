package hostproto

import "fmt"

type ChatMessage struct {
	Sender string
	Text   string
}

func NewChatMessage(sender string, text string) *ChatMessage {
	return &ChatMessage{Sender: sender, Text: text}
}

func (m *ChatMessage) GetCommand() MessageCommand {
	return MessageCommandChat
}

func (m *ChatMessage) GetArgs() []interface{} {
	return []interface{}{m.Sender, m.Text}
}

func (m *ChatMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 2); err != nil {
		return m, err
	}

	var err error
	if m.Sender, err = argString(args, 0); err != nil {
		return m, err
	}
	if m.Text, err = argString(args, 1); err != nil {
		return m, err
	}
	return m, nil
}

func (m *ChatMessage) isInbound() {}

// SwapNoticeMessage is the map's chat notification that two players traded places.
type SwapNoticeMessage struct {
	PlayerA string
	PlayerB string
}

func NewSwapNoticeMessage(a string, b string) *SwapNoticeMessage {
	return &SwapNoticeMessage{PlayerA: a, PlayerB: b}
}

func (m *SwapNoticeMessage) GetCommand() MessageCommand {
	return MessageCommandSwapNotice
}

func (m *SwapNoticeMessage) GetArgs() []interface{} {
	return []interface{}{m.PlayerA, m.PlayerB}
}

func (m *SwapNoticeMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 2); err != nil {
		return m, err
	}

	var err error
	if m.PlayerA, err = argString(args, 0); err != nil {
		return m, err
	}
	if m.PlayerB, err = argString(args, 1); err != nil {
		return m, err
	}
	return m, nil
}

func (m *SwapNoticeMessage) isInbound() {}

type SendChatMessage struct {
	Text string
}

func NewSendChatMessage(text string) *SendChatMessage {
	return &SendChatMessage{Text: text}
}

// NewSwapCommand builds the chat command the map uses to exchange two players.
func NewSwapCommand(a string, b string) *SendChatMessage {
	return &SendChatMessage{Text: fmt.Sprintf("!swap %s %s", a, b)}
}

func (m *SendChatMessage) GetCommand() MessageCommand {
	return MessageCommandSendChat
}

func (m *SendChatMessage) GetArgs() []interface{} {
	return []interface{}{m.Text}
}

func (m *SendChatMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 1); err != nil {
		return m, err
	}

	text, err := argString(args, 0)
	if err != nil {
		return m, err
	}
	m.Text = text
	return m, nil
}

func (m *SendChatMessage) isOutbound() {}
