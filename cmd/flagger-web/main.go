// Command flagger-web serves flagging runs over HTTP: POST /api/runs starts a
// run, /ws streams its progress and /metrics exposes Prometheus metrics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"flagcli/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to flagger.yaml (default: ./flagger.yaml or ./configs/flagger.yaml)")
	flag.Parse()

	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
