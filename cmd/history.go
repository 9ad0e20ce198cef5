package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently logged analyses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("history: no store configured")
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		entries, err := st.Recent(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetEscapeHTML(false)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No analyses found.")
			return nil
		}
		formatHistory(out, entries)
		return nil
	},
}

func formatHistory(w io.Writer, entries []model.Entry) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSOURCE\tCATEGORY\tEVIDENCE\tTEXT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.Analysis.Category,
			len(e.Analysis.Evidence),
			clip(e.Analysis.OriginalText, 60),
		)
	}
	tw.Flush() //nolint:errcheck
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func init() {
	historyCmd.Flags().Int("limit", store.DefaultRecentLimit, "max number of analyses to display")
	historyCmd.Flags().Bool("json", false, "print one JSON document per line")
	rootCmd.AddCommand(historyCmd)
}
