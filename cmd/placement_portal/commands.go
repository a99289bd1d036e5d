package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare the document store schema",
	Long:  `Create the postgres documents table, or the mongo query indexes, for the configured store driver.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			a.logger.Info("migration complete", zap.String("driver", a.cfg.Store.Driver))
			return nil
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute every student's application counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			corrected, err := a.services.Applications.ReconcileAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "corrected %d student(s)\n", corrected)
			return err
		})
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send one batch of pending emails",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app) error {
			sent, err := a.dispatcher.RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d email(s)\n", sent)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, reconcileCmd, dispatchCmd)
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	cmd.SetContext(ctx)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
