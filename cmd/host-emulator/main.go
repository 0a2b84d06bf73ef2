package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/bridge"
	"lobby-autohost/hostproto"
	"lobby-autohost/util"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	bridgePort := flag.Uint("bridge-port", 7410, "The bridge port the autohost listens on")
	logLevel := flag.Int("log-level", 0, "Log level: -1 - Debug, 0 - Info, 1 - Warn, 2 - Error")
	logPath := flag.String("log-path", "", "Directory for log files")
	flag.Parse()

	if err := applog.Initialize("host-emulator", *logLevel, *logPath); err != nil {
		fmt.Printf("Failed to initialize app logger: %v\n", err)
	}

	defer applog.Shutdown()
	defer util.WrapAppContextCancelExitMessage(ctx, "Host-emulator")

	client, err := bridge.Dial(ctx, *bridgePort)
	if err != nil {
		applog.Error("Failed to connect to the autohost", zap.Error(err))
		return
	}
	defer client.Close()

	lobby := newEmulatedLobby()
	commands := make(chan hostproto.Message, 16)

	go func() {
		if err := client.Receive(ctx, commands); err != nil && ctx.Err() == nil {
			applog.Error("Bridge connection failed", zap.Error(err))
		}
		cancel()
	}()

	// The autohost commands are answered the way the game client and map script would.
	go func() {
		for {
			select {
			case cmd := <-commands:
				fmt.Printf("< %s %v\n", cmd.GetCommand(), cmd.GetArgs())
				for _, reply := range lobby.apply(cmd) {
					send(client, reply)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println(usage)

	scanner := bufio.NewScanner(util.NewCancelableIoReader(ctx, os.Stdin))
	scanner.Buffer(make([]byte, 0, 64*1024), bridge.MaxStringLength)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		applog.Debug("Entered command", zap.String("rawCommand", line))

		switch line {
		case "quit":
			return
		case "show":
			fmt.Print(lobby)
			continue
		}

		messages, err := parseLine(lobby, line)
		if errors.Is(err, errUsage) {
			fmt.Println(err)
			fmt.Println(usage)
			continue
		}
		if err != nil {
			fmt.Println(err)
			continue
		}

		for _, msg := range messages {
			send(client, msg)
		}
	}
}

func send(client *bridge.Client, msg hostproto.Inbound) {
	fmt.Printf("> %s %v\n", msg.GetCommand(), msg.GetArgs())
	if err := client.Send(msg); err != nil {
		applog.Error("Failed to send message to the autohost", zap.Error(err))
	}
}
