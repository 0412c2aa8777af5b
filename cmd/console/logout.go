package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/qcconsole/repository"
	authUC "github.com/fastygo/qcconsole/usecase/auth"
)

// logoutCmd clears the stored session without calling the backend.
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Context.RequestTimeout)
			defer cancel()

			store, err := openStore(ctx, cfg, zapLogger)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions := authUC.New(repository.NewAuthStorage(store), nil, zapLogger, authUC.Config{})
			if err := sessions.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
			return nil
		},
	}
}
