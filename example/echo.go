package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/packetsock/packetsock"
)

const (
	socketPath = "/tmp/packetsock-echo.sock"
	mtu        = 4096
)

// echo sends every received packet back on the same channel.
func echo(ch *packetsock.Channel) {
	ctx := context.Background()

	for {
		p, err := ch.Recv(ctx)
		if err != nil {
			slog.Info("channel done", "remote", ch.RemoteAddr(), "reason", err)
			return
		}

		if err := ch.Send(ctx, p); err != nil {
			slog.Error("send failed", "remote", ch.RemoteAddr(), "error", err)
			return
		}
	}
}

func main() {
	server, err := packetsock.NewServer("unix", socketPath, mtu, mtu)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	slog.Info("server start", "addr", socketPath)
	if err := server.Serve(ctx, packetsock.HandlerFunc(echo)); err != nil && err != context.Canceled {
		slog.Error("server error", "error", err)
	}
}
