package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/assets"
	"github.com/roach88/grouparchive/internal/chat"
)

// ArchiveOptions holds flags for the archive command.
type ArchiveOptions struct {
	*RootOptions
	GroupID       string
	Out           string
	PageSize      int
	Workers       int
	GlobalAvatars bool
	MetricsFile   string
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Download a group's history into a directory",
		Long: `Download the complete message history of a group, its people,
avatars and attachments into an archive directory.

The directory holds group_info.json, people.json and messages.json, the
avatars/ and attachments/ folders, and archive.db, an index of every run.
Assets already present from an earlier run are not downloaded again.

Example:
  grouparchive archive --group 12345678 --out ./family
  grouparchive archive --group 12345678 --out ./family --global-avatars --metrics-file archive.prom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GroupID, "group", "", "group id to archive (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "archive directory (required)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", archive.DefaultPageSize, "messages per page (1-100)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent asset downloads")
	cmd.Flags().BoolVar(&opts.GlobalAvatars, "global-avatars", false, "use roster avatars instead of per-chat avatars")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// ArchiveResult is the JSON payload of a successful archive run.
type ArchiveResult struct {
	RunID      string      `json:"run_id"`
	GroupID    string      `json:"group_id"`
	Name       string      `json:"name"`
	Dir        string      `json:"dir"`
	Pages      int         `json:"pages"`
	Messages   int         `json:"messages"`
	Duplicates int         `json:"duplicates"`
	People     []PersonRow `json:"people"`
	Downloaded int         `json:"assets_downloaded"`
	Skipped    int         `json:"assets_skipped"`
	Failed     int         `json:"assets_failed"`
	Bytes      int64       `json:"asset_bytes"`
	Digest     string      `json:"digest"`
}

// PersonRow is one line of the people summary.
type PersonRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func runArchive(ctx context.Context, opts *ArchiveOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	flags := cmd.Flags()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if flags.Changed("page-size") {
		cfg.PageSize = opts.PageSize
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("global-avatars") {
		cfg.UseGlobalAvatar = opts.GlobalAvatars
	}
	if err := validateAPIConfig(cfg); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	policy := archive.LocalAvatar
	if cfg.UseGlobalAvatar {
		policy = archive.GlobalAvatar
	}

	logger := opts.logger(cmd)
	metrics := archive.NewMetrics()
	bar := newProgress(cmd.ErrOrStderr())

	summary, err := archive.Run(ctx, opts.client(cmd, cfg).Source(opts.GroupID), archive.RunOptions{
		Dir:          opts.Out,
		PageSize:     cfg.PageSize,
		Policy:       policy,
		Workers:      cfg.Workers,
		AvatarSuffix: cfg.AvatarSuffix,
		Fetcher:      assets.NewHTTPFetcher(cfg.Timeout()),
		Progress:     bar.callback(),
		Logger:       logger,
		Metrics:      metrics,
	})
	bar.Done()

	if opts.MetricsFile != "" {
		// Failed runs are exported too so source faults show up.
		if merr := metrics.WriteTextfile(opts.MetricsFile); merr != nil {
			logger.Warn("failed to write metrics", "path", opts.MetricsFile, "error", merr)
		}
	}
	if err != nil {
		return archiveFailure(formatter, err)
	}

	return outputArchiveSuccess(formatter, archiveResult(summary, opts.Out, cfg.UseGlobalAvatar))
}

func archiveFailure(formatter *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "archive interrupted", err)
	case chat.IsIntegrityFault(err):
		return formatter.Fail(ExitFailure, ErrCodeIntegrity, "archive is inconsistent", err)
	case archive.IsSourceFault(err):
		return apiFailure(formatter, "failed to fetch messages", err)
	case archive.IsPersistFault(err):
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "failed to write archive", err)
	}
	return apiFailure(formatter, "archive failed", err)
}

func archiveResult(s *archive.Summary, dir string, global bool) ArchiveResult {
	r := ArchiveResult{
		RunID:      s.RunID,
		GroupID:    s.GroupID,
		Name:       s.Archive.Group.Name,
		Dir:        dir,
		Pages:      s.Fetch.Pages,
		Messages:   len(s.Archive.Messages),
		Duplicates: s.Fetch.Duplicates,
		People:     []PersonRow{},
		Downloaded: s.Assets.Downloaded(),
		Skipped:    s.Assets.Skipped(),
		Failed:     len(s.Assets.Failures()),
		Bytes:      s.Assets.Bytes(),
		Digest:     s.Digest,
	}
	for _, id := range s.Archive.People.IDs() {
		p, _ := s.Archive.People.Lookup(id)
		url, _ := p.Avatar(global)
		r.People = append(r.People, PersonRow{ID: id, Name: p.Name, AvatarURL: url})
	}
	return r
}

func outputArchiveSuccess(formatter *OutputFormatter, r ArchiveResult) error {
	if formatter.Format == "json" {
		return formatter.Success(r)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Archived %q (group %s) to %s\n\n", r.Name, r.GroupID, r.Dir)
	fmt.Fprintf(w, "  Run:       %s\n", r.RunID)
	fmt.Fprintf(w, "  Messages:  %s (%d pages, %d duplicates dropped)\n", humanize.Comma(int64(r.Messages)), r.Pages, r.Duplicates)
	fmt.Fprintf(w, "  People:    %d\n", len(r.People))
	fmt.Fprintf(w, "  Assets:    %d downloaded (%s), %d already present, %d failed\n",
		r.Downloaded, humanize.Bytes(uint64(r.Bytes)), r.Skipped, r.Failed)
	fmt.Fprintf(w, "  Digest:    %s\n\n", r.Digest)

	fmt.Fprintln(w, "People:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tAVATAR")
	for _, p := range r.People {
		avatar := p.AvatarURL
		if avatar == "" {
			avatar = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.ID, p.Name, avatar)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nRender with: grouparchive render --in %s\n", filepath.Clean(r.Dir))
	return nil
}
