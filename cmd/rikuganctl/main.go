// rikuganctl is the interactive console for a running Rikugan server.
// It streams activation turns over WebSocket and controls models over
// the REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rikugan-dev/rikugan/pkg/console"
	rerrors "github.com/rikugan-dev/rikugan/pkg/errors"
)

func main() {
	serverURL := flag.String("server", "http://127.0.0.1:8321", "Rikugan server base URL")
	maxNewTokens := flag.Int("tokens", 0, "Generation budget per turn (default: server default)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	homeDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(homeDir, ".rikugan_history")

	c, err := console.New(console.Config{
		ServerURL:    *serverURL,
		HistoryFile:  historyFile,
		MaxNewTokens: *maxNewTokens,
	})
	if err != nil {
		rerrors.DefaultFormatter().Print(err)
		os.Exit(1)
	}

	if err := c.Run(ctx); err != nil && err != context.Canceled {
		rerrors.DefaultFormatter().Print(err)
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}
