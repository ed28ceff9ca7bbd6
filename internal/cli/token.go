package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpadapter "antygravity/internal/adapters/http"
)

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for a user (development and testing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.Secret == "" {
				return errors.New("auth.secret (ANTY_AUTH_SECRET) must be set to sign tokens")
			}
			if ttl <= 0 {
				ttl = a.cfg.Auth.TokenTTL
			}
			auth := httpadapter.NewAuthenticator(a.cfg.Auth.Secret, a.cfg.Auth.Issuer, false)
			tok, err := auth.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (auth.token_ttl when zero)")
	return cmd
}
