package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/studydeck/auth"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session and print the provider logout URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := openLocalClient(cmd.Context())
		if err != nil {
			return err
		}
		defer lc.Close()

		nav, err := lc.controller.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Local session cleared.")
		if errors.Is(err, auth.ErrConfigurationMissing) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "To end the provider session as well, open:\n  %s\n", nav.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
