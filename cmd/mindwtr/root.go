package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mindwtr/mindwtr/internal/config"
	"github.com/mindwtr/mindwtr/internal/storage"
	"github.com/mindwtr/mindwtr/internal/storage/file"
	"github.com/mindwtr/mindwtr/internal/storage/sqlite"
	"github.com/mindwtr/mindwtr/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mindwtr",
	Short: "Local-first GTD task manager",
	Long: `mindwtr is a local-first task manager with projects, areas,
recurring tasks and tombstoned deletes.

Data lives in a single JSON file (or a SQLite database with
--store sqlite) that syncs through any file-syncing tool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("data", "", "path to the data file (default: platform data dir)")
	rootCmd.PersistentFlags().String("store", "file", "storage backend: file or sqlite")
	rootCmd.PersistentFlags().String("log-file", "", "append logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress log output")

	viper.SetEnvPrefix("MINDWTR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "organize", Title: "Organization Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
	)
}

// newLogger builds the process logger. With --log-file set, output
// rotates through lumberjack; --quiet discards it entirely.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if viper.GetBool("quiet") {
		out = io.Discard
	} else if path := viper.GetString("log-file"); path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// dataPath resolves the data file location: flag/env first, then the
// platform data directory.
func dataPath() (string, error) {
	if path := viper.GetString("data"); path != "" {
		return path, nil
	}
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	name := config.DataFileName
	if viper.GetString("store") == "sqlite" {
		name = config.DBFileName
	}
	return filepath.Join(dir, name), nil
}

// newAdapter builds the storage adapter selected by --store.
func newAdapter() (storage.Adapter, func() error, error) {
	path, err := dataPath()
	if err != nil {
		return nil, nil, err
	}
	switch backend := viper.GetString("store"); backend {
	case "", "file":
		return file.New(path), func() error { return nil }, nil
	case "sqlite":
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q (want file or sqlite)", backend)
	}
}

// openStore loads the document and returns the store plus a cleanup
// that flushes pending writes and releases the adapter.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	adapter, release, err := newAdapter()
	if err != nil {
		return nil, nil, err
	}

	cfg := store.DefaultConfig()
	cfg.Adapter = adapter
	cfg.Logger = newLogger("[store] ")
	s, err := store.Open(ctx, cfg)
	if err != nil {
		release()
		return nil, nil, err
	}

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: flush on close: %v\n", err)
		}
		if err := release(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close storage: %v\n", err)
		}
	}
	return s, cleanup, nil
}
