package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/aurachat/internal/client/cli"
	"github.com/dmitrijs2005/aurachat/internal/client/config"
	"github.com/dmitrijs2005/aurachat/internal/logging"
)

func main() {

	cfg := config.LoadConfig()

	// interactive output owns stdout; diagnostics go to stderr
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn})))

	app := cli.NewApp(cfg, logger)

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}

}
