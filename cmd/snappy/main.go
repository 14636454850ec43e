package main

import (
	stdlog "log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/PIO-VIA/Snapppy/internal/config"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/handlers/slogpretty"
)

var configPath string

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	root := &cobra.Command{
		Use:           "snappy",
		Short:         "Snappy chat client with an offline cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $CONFIG_PATH)")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(signinCmd())
	root.AddCommand(chatsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(attachCmd())
	root.AddCommand(listenCmd())
	root.AddCommand(devserverCmd())

	if err := root.Execute(); err != nil {
		stdlog.Println(err)
		os.Exit(1)
	}
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvLocal:
		return setupPrettySlog()
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
