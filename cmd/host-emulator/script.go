package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"lobby-autohost/hostproto"
	"lobby-autohost/snapshot"
	"strconv"
	"strings"
)

var errUsage = errors.New("usage")

const usage = `commands:
  setup <json>                full lobby setup, snapshot.Setup as json
  join <slot> <team> <name>   seat a player
  leave <slot>                open a slot
  team <slot> <team>          move a slot to another team
  chat <sender> <text>        lobby chat line
  notice <a> <b>              map swap notification
  left [reason]               client left the lobby
  show                        print the emulated lobby
  quit`

// parseLine turns one script line into the messages the emulated client sends.
func parseLine(lobby *emulatedLobby, line string) ([]hostproto.Inbound, error) {
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch command {
	case "setup":
		var setup snapshot.Setup
		if err := json.Unmarshal([]byte(rest), &setup); err != nil {
			return nil, fmt.Errorf("invalid setup json: %w", err)
		}
		return []hostproto.Inbound{lobby.load(setup)}, nil

	case "join":
		if len(args) != 3 {
			return nil, fmt.Errorf("%w: join <slot> <team> <name>", errUsage)
		}
		number, team, err := twoInts(args[0], args[1])
		if err != nil {
			return nil, err
		}
		slot := snapshot.Slot{Number: number, Status: snapshot.SlotPlayer, Team: team, Player: args[2]}
		return []hostproto.Inbound{lobby.update(slot)}, nil

	case "leave":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: leave <slot>", errUsage)
		}
		number, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid slot %q", args[0])
		}
		slot, ok := lobby.slot(number)
		if !ok {
			return nil, fmt.Errorf("unknown slot %d", number)
		}
		slot.Status = snapshot.SlotOpen
		slot.Player = ""
		return []hostproto.Inbound{lobby.update(slot)}, nil

	case "team":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: team <slot> <team>", errUsage)
		}
		number, team, err := twoInts(args[0], args[1])
		if err != nil {
			return nil, err
		}
		slot, ok := lobby.slot(number)
		if !ok {
			return nil, fmt.Errorf("unknown slot %d", number)
		}
		slot.Team = team
		return []hostproto.Inbound{lobby.update(slot)}, nil

	case "chat":
		sender, text, ok := strings.Cut(rest, " ")
		if !ok || text == "" {
			return nil, fmt.Errorf("%w: chat <sender> <text>", errUsage)
		}
		return []hostproto.Inbound{hostproto.NewChatMessage(sender, text)}, nil

	case "notice":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: notice <a> <b>", errUsage)
		}
		return []hostproto.Inbound{hostproto.NewSwapNoticeMessage(args[0], args[1])}, nil

	case "left":
		return []hostproto.Inbound{hostproto.NewLobbyLeftMessage(rest)}, nil
	}

	return nil, fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func twoInts(a string, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", b)
	}
	return x, y, nil
}
