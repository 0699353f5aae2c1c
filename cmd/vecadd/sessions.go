package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/vecadd/internal/bench"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [session.json]",
		Short: "Summarize a benchmark session log (the latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				if activeCfg.Bench.SessionLog == "" {
					return fmt.Errorf("bench.session_log is empty; pass a session file")
				}
				latest, err := bench.LatestSessionFile(activeCfg.Bench.SessionLog)
				if err != nil {
					return err
				}
				path = latest
			}

			summary, err := bench.SessionSummary(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
