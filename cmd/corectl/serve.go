package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"corestore/internal/config"
	"corestore/internal/engine"
)

func newServeCmd() *cobra.Command {
	var dbDir string
	var bufferPoolSize int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open a database directory, run recovery, and idle until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if bufferPoolSize > 0 {
				cfg.BufferPoolSize = bufferPoolSize
			}

			eng, err := engine.Open(dbDir, cfg)
			if err != nil {
				return fmt.Errorf("open %s: %w", dbDir, err)
			}
			fmt.Printf("corestore: serving %s (buffer pool %d frames)\n", dbDir, cfg.BufferPoolSize)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			fmt.Println("corestore: shutting down")
			return eng.Close()
		},
	}

	cmd.Flags().StringVar(&dbDir, "db", "./data", "database directory")
	cmd.Flags().IntVar(&bufferPoolSize, "buffer-pool-frames", 0, "buffer pool size in frames (0 = default)")
	return cmd
}
