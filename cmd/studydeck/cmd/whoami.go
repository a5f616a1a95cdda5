package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the persisted session and its effective roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		lc, err := openLocalClient(cmd.Context())
		if err != nil {
			return err
		}
		defer lc.Close()

		state := lc.controller.State()
		rows := [][]string{{"Status", state.Status.String()}}
		if claims := lc.controller.Claims(); claims != nil {
			roles := strings.Join(claims.Roles.Strings(), ", ")
			if roles == "" {
				roles = "-"
			}
			rows = append(rows,
				[]string{"Subject", orDash(claims.Subject)},
				[]string{"Email", orDash(claims.Email)},
				[]string{"Roles", roles},
				[]string{"Expires", state.Session.Expiry().Local().Format(time.RFC1123)},
			)
		}
		if err := renderTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows); err != nil {
			return err
		}
		if state.Session == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run `studydeck server --open` to log in.")
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
