package main

import (
	"context"
	"fmt"
	"lobby-autohost/adapter"
	"lobby-autohost/applog"
	"lobby-autohost/config"
	"lobby-autohost/util"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	info := config.NewInfoFromFlags()
	err := applog.Initialize(info.InstanceName, info.LogLevel, info.LogPath)
	if err != nil {
		fmt.Printf("Failed to initialize app logger: %v\n", err)
	}

	defer applog.Shutdown()
	defer util.WrapAppContextCancelExitMessage(ctx, "Autohost")

	if err = info.Validate(); err != nil {
		applog.Error("Failed to validate command line arguments", zap.Error(err))
		return
	}

	applog.LogStartupInfo(info.Redacted())

	adapterInstance, err := adapter.New(ctx, cancel, info)
	if err != nil {
		applog.Error("Failed to create autohost", zap.Error(err))
		return
	}

	if err = adapterInstance.Start(); err != nil {
		applog.Error("Autohost failed", zap.Error(err))
	}
}
