/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillpost/apiserver/config"
	"github.com/quillpost/apiserver/internal/events"
	"github.com/quillpost/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect post lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print post events from the configured broker as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		if broker == nil {
			return fmt.Errorf("events are disabled; set EVENTS_DRIVER to %s or %s",
				config.EventsDriverRabbitMQ, config.EventsDriverPubSub)
		}
		defer broker.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = broker.Subscribe(ctx, cfg.Events.Channel, func(_ context.Context, msg mq.Message) error {
			event, err := events.Decode(msg.Data)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping message %s: %v\n", msg.ID, err)
				return nil
			}
			return enc.Encode(event)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
