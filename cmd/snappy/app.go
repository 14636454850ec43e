package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/PIO-VIA/Snapppy/internal/alert"
	"github.com/PIO-VIA/Snapppy/internal/chats/service"
	"github.com/PIO-VIA/Snapppy/internal/config"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/snappy"
	"github.com/PIO-VIA/Snapppy/internal/storage"
	"github.com/PIO-VIA/Snapppy/internal/uploads"
)

// app holds everything a client command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	kv      storage.KV
	api     *snappy.Client
	service *service.Service
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := setupLogger(cfg.Env)
	log.Debug("config loaded", slog.String("env", cfg.Env), slog.String("api", cfg.API.BaseURL))

	return cfg, log, nil
}

func newApp(ctx context.Context) (*app, error) {
	const op = "main.newApp"

	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	opts := service.Options{
		ProjectID:   cfg.API.ProjectID,
		ClockOffset: cfg.API.ClockOffset,
	}

	if cfg.Uploads.Enabled() {
		client, err := uploads.NewS3Client(ctx, cfg.Uploads)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts.Uploader = uploads.New(cfg.Uploads.Bucket, client, cfg.Uploads.MaxSize)
	}

	api := snappy.New(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, log)

	return &app{
		cfg:     cfg,
		log:     log,
		kv:      kv,
		api:     api,
		service: service.New(api, kv, alert.NewTerminal(os.Stderr), log, opts),
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.log.Warn("failed to close storage", sl.Err(err))
	}
}

// wsURL returns the configured websocket endpoint or derives it from the API
// base URL.
func wsURL(cfg config.APIConfig) (string, error) {
	if cfg.WSURL != "" {
		return cfg.WSURL, nil
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	return u.String(), nil
}
