package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JailtonJunior94/jobkit-go/cmd/jobkit/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		commands.PrintErr("Error: %v", err)
		stop()
		os.Exit(1)
	}
}
