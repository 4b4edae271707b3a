package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prettylog/blogpipe/internal/auth"
)

// NewTokenCommand constructs the `token` command, which signs an access
// token accepted by the API's authenticated routes.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				key = os.Getenv("SIGNING_KEY")
			}
			if key == "" {
				return errors.New("no signing key: pass --key or set SIGNING_KEY")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			tok, err := auth.MakeJWT(subject, key, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "token subject, usually an author id")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	cmd.Flags().String("key", "", "HMAC signing key (defaults to SIGNING_KEY)")
	return cmd
}
