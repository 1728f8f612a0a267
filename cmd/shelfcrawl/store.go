package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/shelfcrawl/internal/checkpoint"
	"github.com/nao1215/shelfcrawl/internal/config"
	"github.com/nao1215/shelfcrawl/internal/database"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// addStoreFlags registers the flags that locate the checkpoint.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", config.DefaultBackend,
		"Checkpoint backend: json or sqlite")
	cmd.Flags().StringP("state", "s", config.DefaultStateFile,
		"JSON checkpoint file (json backend)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding "+database.FileName+" (sqlite backend)")
}

// readStoreFlags copies the checkpoint location flags into cfg.
func readStoreFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	cfg.Backend, err = cmd.Flags().GetString("backend")
	if err != nil {
		return err
	}
	cfg.StateFile, err = cmd.Flags().GetString("state")
	if err != nil {
		return err
	}
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	return nil
}

// openStore opens the checkpoint store selected by cfg. The returned
// database is non-nil for the sqlite backend, which also keeps the run
// history. When create is false a missing database is an error.
func openStore(cfg *config.Config, create bool) (checkpoint.Store, *database.CrawlDB, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		return checkpoint.NewFileStore(cfg.StateFile), nil, nil
	case config.BackendSQLite:
		opts := database.DefaultOptions()
		opts.CreateIfNotExists = create
		db, err := database.Open(cfg.DBDir, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, db, nil
	default:
		return nil, nil, config.ErrUnknownBackend
	}
}

// loadCheckpoint reads the checkpoint for the read-only commands. A missing
// checkpoint is an error here, unlike in crawl. The database is returned
// open for the sqlite backend and must be closed by the caller.
func loadCheckpoint(ctx context.Context, cfg *config.Config) (model.Checkpoint, *database.CrawlDB, error) {
	store, db, err := openStore(cfg, false)
	if err != nil {
		return model.Checkpoint{}, nil, err
	}

	cp, err := store.Load(ctx)
	if err != nil {
		store.Close()
		if errors.Is(err, checkpoint.ErrNoCheckpoint) {
			return model.Checkpoint{}, nil, fmt.Errorf("no checkpoint found, run shelfcrawl crawl first: %w", err)
		}
		return model.Checkpoint{}, nil, err
	}
	if db == nil {
		store.Close()
	}
	return cp, db, nil
}
