package hostproto

// slotCommand is shared by the commands addressing a single slot.
type slotCommand struct {
	Slot int
}

func (m *slotCommand) GetArgs() []interface{} {
	return []interface{}{int32(m.Slot)}
}

func (m *slotCommand) build(args []interface{}) error {
	if err := checkArgs(args, 1); err != nil {
		return err
	}

	slot, err := argInt(args, 0)
	if err != nil {
		return err
	}
	m.Slot = slot
	return nil
}

type OpenSlotMessage struct {
	slotCommand
}

func NewOpenSlotMessage(slot int) *OpenSlotMessage {
	return &OpenSlotMessage{slotCommand{Slot: slot}}
}

func (m *OpenSlotMessage) GetCommand() MessageCommand {
	return MessageCommandOpenSlot
}

func (m *OpenSlotMessage) Build(args []interface{}) (Message, error) {
	return m, m.build(args)
}

func (m *OpenSlotMessage) isOutbound() {}

type CloseSlotMessage struct {
	slotCommand
}

func NewCloseSlotMessage(slot int) *CloseSlotMessage {
	return &CloseSlotMessage{slotCommand{Slot: slot}}
}

func (m *CloseSlotMessage) GetCommand() MessageCommand {
	return MessageCommandCloseSlot
}

func (m *CloseSlotMessage) Build(args []interface{}) (Message, error) {
	return m, m.build(args)
}

func (m *CloseSlotMessage) isOutbound() {}

type KickSlotMessage struct {
	slotCommand
}

func NewKickSlotMessage(slot int) *KickSlotMessage {
	return &KickSlotMessage{slotCommand{Slot: slot}}
}

func (m *KickSlotMessage) GetCommand() MessageCommand {
	return MessageCommandKickSlot
}

func (m *KickSlotMessage) Build(args []interface{}) (Message, error) {
	return m, m.build(args)
}

func (m *KickSlotMessage) isOutbound() {}

// BanSlotMessage bans whoever occupies the slot. Player is informational, the client
// refuses the ban when the occupant changed in the meantime.
type BanSlotMessage struct {
	Slot   int
	Player string
	Reason string
}

func NewBanSlotMessage(slot int, player string, reason string) *BanSlotMessage {
	return &BanSlotMessage{Slot: slot, Player: player, Reason: reason}
}

func (m *BanSlotMessage) GetCommand() MessageCommand {
	return MessageCommandBanSlot
}

func (m *BanSlotMessage) GetArgs() []interface{} {
	return []interface{}{int32(m.Slot), m.Player, m.Reason}
}

func (m *BanSlotMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 3); err != nil {
		return m, err
	}

	var err error
	if m.Slot, err = argInt(args, 0); err != nil {
		return m, err
	}
	if m.Player, err = argString(args, 1); err != nil {
		return m, err
	}
	if m.Reason, err = argString(args, 2); err != nil {
		return m, err
	}
	return m, nil
}

func (m *BanSlotMessage) isOutbound() {}

type SetTeamMessage struct {
	Slot int
	Team int
}

func NewSetTeamMessage(slot int, team int) *SetTeamMessage {
	return &SetTeamMessage{Slot: slot, Team: team}
}

func (m *SetTeamMessage) GetCommand() MessageCommand {
	return MessageCommandSetTeam
}

func (m *SetTeamMessage) GetArgs() []interface{} {
	return []interface{}{int32(m.Slot), int32(m.Team)}
}

func (m *SetTeamMessage) Build(args []interface{}) (Message, error) {
	if err := checkArgs(args, 2); err != nil {
		return m, err
	}

	var err error
	if m.Slot, err = argInt(args, 0); err != nil {
		return m, err
	}
	if m.Team, err = argInt(args, 1); err != nil {
		return m, err
	}
	return m, nil
}

func (m *SetTeamMessage) isOutbound() {}

type StartGameMessage struct{}

func NewStartGameMessage() *StartGameMessage {
	return &StartGameMessage{}
}

func (m *StartGameMessage) GetCommand() MessageCommand {
	return MessageCommandStartGame
}

func (m *StartGameMessage) GetArgs() []interface{} {
	return []interface{}{}
}

func (m *StartGameMessage) Build(_ []interface{}) (Message, error) {
	return m, nil
}

func (m *StartGameMessage) isOutbound() {}

type LeaveLobbyMessage struct{}

func NewLeaveLobbyMessage() *LeaveLobbyMessage {
	return &LeaveLobbyMessage{}
}

func (m *LeaveLobbyMessage) GetCommand() MessageCommand {
	return MessageCommandLeaveLobby
}

func (m *LeaveLobbyMessage) GetArgs() []interface{} {
	return []interface{}{}
}

func (m *LeaveLobbyMessage) Build(_ []interface{}) (Message, error) {
	return m, nil
}

func (m *LeaveLobbyMessage) isOutbound() {}
