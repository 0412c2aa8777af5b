package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/repository"
	authUC "github.com/fastygo/qcconsole/usecase/auth"
)

type statusReport struct {
	State        string              `json:"state"`
	User         *domain.UserProfile `json:"user,omitempty"`
	IsExpired    bool                `json:"isExpired"`
	ExpiresIn    string              `json:"expiresIn,omitempty"`
	ExpiryDate   *time.Time          `json:"expiryDate,omitempty"`
	ExpiringSoon bool                `json:"expiringSoon"`
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the stored session and token expiry",
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

			sessions := authUC.New(repository.NewAuthStorage(store), nil, zapLogger, authUC.Config{
				ExpiringSoon: cfg.Session.ExpiringSoon,
			})
			// Read-only: an expired session is reported, not cleared.
			session, err := sessions.Inspect(ctx)
			if err != nil {
				return err
			}

			info := sessions.TokenExpiryInfo(ctx)
			report := statusReport{
				State:        domain.State(session),
				User:         sessionUser(session),
				IsExpired:    info.IsExpired,
				ExpiryDate:   info.ExpiryDate,
				ExpiringSoon: sessions.IsTokenExpiringSoon(ctx),
			}
			if !info.IsExpired {
				report.ExpiresIn = info.TimeUntilExpiry.Round(time.Second).String()
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "Session:  %s\n", report.State)
			if report.User != nil {
				fmt.Fprintf(out, "User:     %s <%s>\n", report.User.Username, report.User.Email)
				fmt.Fprintf(out, "Role:     %s\n", report.User.Role.Name)
			}
			switch {
			case report.IsExpired:
				fmt.Fprintln(out, "Token:    expired or absent")
			case report.ExpiringSoon:
				fmt.Fprintf(out, "Token:    expires in %s (soon)\n", report.ExpiresIn)
			default:
				fmt.Fprintf(out, "Token:    expires in %s\n", report.ExpiresIn)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func sessionUser(s domain.Session) *domain.UserProfile {
	switch v := s.(type) {
	case domain.LoggedIn:
		return &v.User
	case domain.Inconsistent:
		return v.User
	}
	return nil
}
