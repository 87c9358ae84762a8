package main

import (
	"context"
	"fmt"

	"github.com/Joseda-hg/todoserver/internal/config"
	"github.com/Joseda-hg/todoserver/internal/tui"
	"github.com/spf13/cobra"
)

func consoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Browse and edit one user's tasks in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close(ctx)

			return tui.Run(store, userID)
		},
	}
	cmd.Flags().String("user", "", "user id whose tasks are shown")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration, without secrets, to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgPath, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
			return nil
		},
	})
	return cmd
}
