package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mindwtr/mindwtr/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "data",
	Short:   "Follow external changes to the data file",
	Long: `Watch the data file and re-read it whenever a sync client or
another process replaces it. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("store") == "sqlite" {
			return fmt.Errorf("watch only applies to the file backend")
		}

		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		path, err := dataPath()
		if err != nil {
			return err
		}

		cfg := watch.DefaultConfig()
		cfg.Logger = newLogger("[watch] ")
		w, err := watch.New(s, path, cfg)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", path)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
