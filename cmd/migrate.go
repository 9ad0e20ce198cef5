package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the analysis log table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("migrate: no store configured")
		}
		defer st.Close() //nolint:errcheck

		fmt.Fprintln(cmd.OutOrStdout(), "Store migrated.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
