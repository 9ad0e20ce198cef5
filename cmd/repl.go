package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Analyze expressions interactively in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, model.SourceTerminal)
		if err != nil {
			return err
		}
		defer env.Close()

		scope := env.Classifier.Template().Description
		if scope == "" {
			scope = env.Classifier.Template().Name
		}
		r := repl.New(env.Analyzer,
			repl.WithPersistence(env.Persistent()),
			repl.WithScope(scope),
			repl.WithProvider(cases.Title(language.Spanish).String(cfg.Classifier.Provider)),
		)

		return env.runWithWorker(ctx, func(ctx context.Context) error {
			return r.Run(ctx, os.Stdin, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
