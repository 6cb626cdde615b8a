package main

import (
	"log/slog"
	"os"

	"mediapool.click/internal/engine"
	"mediapool.click/internal/media"
	"mediapool.click/internal/sampler"
	"mediapool.click/internal/slots"

	"github.com/spf13/afero"
)

// Standalone smoke entry: builds an empty sampler, opens the default audio
// backend and verifies the pull chain end to end. The real CLI lives at the
// repository root.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	slog.Info("mediapool smoke run starting")

	table := slots.NewTable(afero.NewOsFs(), media.NewDefaultRegistry())
	module := sampler.New(sampler.Options{Slots: table})
	defer module.Close()

	backend, err := engine.NewBackendFactory().CreateBackend("auto", engine.Config{})
	if err != nil {
		slog.Error("failed to create audio backend", "error", err)
		os.Exit(1)
	}
	if err := backend.Start(module); err != nil {
		slog.Error("failed to start audio backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	module.Tick()
	slog.Info("mediapool initialized successfully",
		"backend", backend.Name(),
		"mode", module.Mode().String())
}
