package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the question catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		qs, err := a.svc.Questions()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-32s  %s\n", "ID", "Question")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, q := range qs {
			fmt.Fprintf(out, "%-32s  %s\n", q.AttributeID, q.Prompt)
		}
		fmt.Fprintf(out, "\n%d questions\n", len(qs))
		return nil
	},
}

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the known characters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.svc.Subjects(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		fmt.Fprintf(out, "\n%d subjects\n", len(names))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent learning events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.store.Events().Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No learning events yet.")
			return nil
		}

		fmt.Fprintf(out, "%-5s  %-19s  %-15s  %-24s  %-24s  %-2s  %s\n",
			"Seq", "Timestamp", "Kind", "Subject", "Attribute", "OK", "Detail")
		fmt.Fprintln(out, strings.Repeat("─", 110))
		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			fmt.Fprintf(out, "%-5d  %-19s  %-15s  %-24s  %-24s  %-2s  %s\n",
				e.Sequence,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Kind,
				truncate(e.Subject, 24),
				truncate(e.AttributeID, 24),
				ok,
				e.Detail,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of events to show (0 for all)")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
