package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow outcomes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status = strings.ToLower(strings.TrimSpace(status))
			switch status {
			case "", marketplace.StatusSucceeded, marketplace.StatusFailed, marketplace.StatusFault:
			default:
				return clierr.New(clierr.CodeUsage, "--status must be one of succeeded|failed|fault")
			}
			if limit < 0 {
				return clierr.New(clierr.CodeUsage, "--limit must be >= 0")
			}
			j := s.openJournal()
			if j == nil {
				return clierr.New(clierr.CodeUnavailable, "workflow journal is unavailable")
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()
			entries, err := j.List(ctx, status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "read workflow journal", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), presentHistory(entries))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by outcome (succeeded|failed|fault)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to return")
	return cmd
}
