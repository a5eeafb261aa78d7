package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
	"github.com/rikugan-dev/rikugan/pkg/api"
	"github.com/rikugan-dev/rikugan/pkg/config"
	"github.com/rikugan-dev/rikugan/pkg/session"
	"github.com/rikugan-dev/rikugan/pkg/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the activation streaming server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "bind address (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serveCmd.Flags().String("model", "", "model to load at startup (overrides config)")
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initConfigFile(path string) error {
	return config.InitConfig(path)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Model.Default = model
	}

	log := newLogger(cfg.Log)

	registry := adapter.Default()
	state := session.New()

	var recorder *trace.Recorder
	if cfg.Trace.Enabled {
		recorder, err = trace.Open(cfg.Trace.Path)
		if err != nil {
			return err
		}
		defer recorder.Close()
		log.Info().Str("path", cfg.Trace.Path).Msg("turn tracing enabled")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Model.Default != "" {
		if err := loadDefaultModel(ctx, log, registry, state, cfg.Model); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Registry: registry,
		State:    state,
		Model:    cfg.Model,
		Trace:    recorder,
		Log:      log,
	})
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("Rikugan listening on http://%s (ws://%s/ws)\n", srv.Address(), srv.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	state.Clear()
	return nil
}

// loadDefaultModel resolves and loads the configured startup model.
func loadDefaultModel(ctx context.Context, log zerolog.Logger, registry *adapter.Registry, state *session.State, cfg config.ModelConfig) error {
	factory, desc, ok := registry.Resolve(cfg.Default)
	if !ok {
		return fmt.Errorf("unknown default model %q", cfg.Default)
	}

	instance := factory()
	if err := instance.Load(ctx, adapter.LoadOptions{Device: cfg.Device, DType: cfg.DType}); err != nil {
		return fmt.Errorf("loading default model %s: %w", desc.ID, err)
	}
	state.Set(instance, desc.ID)
	log.Info().
		Str("model_id", desc.ID).
		Str("support", desc.Activation.String()).
		Msg("default model loaded")
	return nil
}
