package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/repl"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text...>",
	Short: "Analyze a single expression and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, model.SourceTerminal)
		if err != nil {
			return err
		}
		defer env.Close()

		table, _ := cmd.Flags().GetBool("table")
		text := strings.Join(args, " ")

		return env.runWithWorker(ctx, func(ctx context.Context) error {
			analysis, err := env.Analyzer.Analyze(ctx, text)
			if err != nil {
				return err
			}
			if table {
				repl.Print(cmd.OutOrStdout(), analysis)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(analysis)
		})
	},
}

func init() {
	classifyCmd.Flags().Bool("table", false, "print a labelled table instead of JSON")
	rootCmd.AddCommand(classifyCmd)
}
