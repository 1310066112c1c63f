package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/grouparchive/internal/groupme"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	PerPage int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List group and direct-message chats",
		Long: `List every group chat and direct-message chat visible to the token,
with message counts. Use the ID of a group with 'grouparchive archive'.

Example:
  grouparchive list
  grouparchive list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.PerPage, "per-page", groupme.DefaultListPageSize, "chats requested per listing page")

	return cmd
}

func runList(ctx context.Context, opts *ListOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.apiConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	client := opts.client(cmd, cfg)

	groups, err := client.ListGroups(ctx, opts.PerPage)
	if err != nil {
		return apiFailure(formatter, "failed to list groups", err)
	}
	chats, err := client.ListChats(ctx, opts.PerPage)
	if err != nil {
		return apiFailure(formatter, "failed to list chats", err)
	}
	all := append(groups, chats...)

	if formatter.Format == "json" {
		if all == nil {
			all = []groupme.ChatSummary{}
		}
		return formatter.Success(all)
	}

	if len(all) == 0 {
		fmt.Fprintln(formatter.Writer, "No chats found")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tNAME\tMESSAGES")
	for _, c := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Kind, c.ID, c.Name, humanize.Comma(int64(c.Messages)))
	}
	return tw.Flush()
}

// apiFailure maps a GroupMe client error to an exit error.
func apiFailure(formatter *OutputFormatter, message string, err error) error {
	if groupme.IsUnauthorized(err) {
		return formatter.Fail(ExitCommandError, ErrCodeAuth, message, err)
	}
	return formatter.Fail(ExitFailure, ErrCodeSource, message, err)
}
