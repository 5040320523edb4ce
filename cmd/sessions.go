/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/quillpost/apiserver/config"
	"github.com/quillpost/apiserver/internal/db"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/services"
	"github.com/quillpost/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired sessions from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.StoreDriver == config.StoreDriverMemory {
			return fmt.Errorf("sessions prune needs the %s store driver", config.StoreDriverPostgres)
		}

		ctx := commandContext(cmd)
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		logger := logging.New(os.Stderr, cfg.Log)
		sessions := services.NewSessionManager(store.NewSessionRepository(conn), cfg.Session.TTL, []byte(cfg.Session.Secret), logger)
		removed, err := sessions.PruneExpired(ctx)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)
}
