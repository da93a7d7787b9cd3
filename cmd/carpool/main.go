package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/carpool-client/internal/api"
	"github.com/nhle/carpool-client/internal/app"
	"github.com/nhle/carpool-client/internal/credential"
	"github.com/nhle/carpool-client/internal/logging"
	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/notification"
	"github.com/nhle/carpool-client/internal/realtime"
	"github.com/nhle/carpool-client/internal/session"
	"github.com/nhle/carpool-client/internal/store"
	"github.com/nhle/carpool-client/internal/theme"
)

func main() {
	cfgFile := flag.String("config", model.DefaultConfigPath(), "path to config file")
	logLevel := flag.String("log-level", "", "override log.level (debug, info, warn, error)")
	writeConfig := flag.Bool("write-config", false, "write the effective config to -config and exit")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carpool: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if *writeConfig {
		if err := model.SaveConfig(*cfgFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "carpool: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", *cfgFile)
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "carpool: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until the UI exits.
func run(cfg *model.AppConfig) error {
	cleanup, err := logging.Init(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer cleanup()
	log := logging.Get()

	if !theme.Apply(cfg.Display.Theme) {
		log.Warn().Str("theme", cfg.Display.Theme).Msg("unknown theme, using default")
	}

	client := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSec)*time.Second)

	channel, err := realtime.NewManager(cfg.Realtime.URL,
		realtime.WithTransports(cfg.Realtime.Transports...),
		realtime.WithHandshakeTimeout(time.Duration(cfg.Realtime.HandshakeTimeoutSec)*time.Second),
		realtime.WithLogger(logging.Component("realtime")),
	)
	if err != nil {
		return fmt.Errorf("configuring realtime channel: %w", err)
	}

	notes := notification.NewStore(client, channel,
		notification.WithLogger(logging.Component("notifications")),
		notification.WithDedupe(cfg.Notifications.DedupePushes),
		notification.WithRequestTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
	)
	defer notes.Close()

	tokens, err := credential.Open(model.ConfigDir())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	var profiles store.Store
	profiles, err = store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer profiles.Close()

	sessions := session.NewManager(client, tokens, profiles, notes, logging.Component("session"))

	restored, err := sessions.BootstrapSession(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("could not restore previous session")
	}
	log.Info().Bool("restored", restored).Str("api", cfg.API.BaseURL).Msg("carpool started")

	root := app.New(sessions, notes, channel)
	defer root.Close()

	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
