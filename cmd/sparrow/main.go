// Sparrow is a Slack assistant for Early Bird Labs. It answers questions,
// triages feature requests and bug reports into Jira, and understands image,
// audio and document attachments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/internal/server"
	pkgconfig "github.com/earlybirdlabs/sparrow/pkg/config"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sparrow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.AppConfig{}
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = pkgconfig.GetConfigFromFileAndEnvVars(path, cfg)
	} else {
		err = pkgconfig.GetConfigFromEnvVars(cfg)
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: "sparrow",
	})
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
