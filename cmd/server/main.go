package main

import (
	"context"
	"os/signal"
	"syscall"

	"backend-loket/cmd/server/command"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := command.NewRoot(ctx).Execute(); err != nil {
		log.WithContext(ctx).Fatalf("failed to execute root command: \n%v", err)
	}
}
