// Command pense is the professor's terminal client: sign in, then manage classes and their activities.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/collegepense/pense/apps/pense/tui"
	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/classroom"
	"github.com/collegepense/pense/core/screens"
	"github.com/collegepense/pense/core/session"
	backendsvc "github.com/collegepense/pense/services/backend"
	logsvc "github.com/collegepense/pense/services/logger"
	"github.com/collegepense/pense/storage/device"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pense:", err)
		os.Exit(1)
	}
}

func run() error {
	conf := core.NewConfig()

	if err := os.MkdirAll(filepath.Dir(conf.Device.LogPath), 0o700); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	logFile, err := os.OpenFile(conf.Device.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	defer func() { _ = logFile.Close() }()

	logger := logsvc.NewRollbarLogger(
		log.New(logFile, "PENSE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	storage, err := device.OpenSQLite(conf.Device.SessionDBPath)
	if err != nil {
		return err
	}
	defer func() { _ = storage.Close() }()

	client := backendsvc.New(backendsvc.OptionsFromConfig(conf.Backend, storage, logger))
	defer client.Close()

	// the router must watch the store before it starts
	store := session.NewStore(client, logger)
	defer store.Close()
	router := screens.NewRouter(store)
	defer router.Close()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	model := tui.NewModel(tui.Deps{
		Store:      store,
		Router:     router,
		Auth:       client,
		Classes:    classroom.NewService(client, validate, translator),
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := store.Start(ctx); err != nil {
			logger.Error(fmt.Sprintf("starting session store: %v", err), err)
		}
	}()

	return tui.Run(model, tea.WithAltScreen())
}
