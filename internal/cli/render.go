package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/grouparchive/internal/archive"
	"github.com/roach88/grouparchive/internal/chat"
	"github.com/roach88/grouparchive/internal/render"
	"github.com/roach88/grouparchive/internal/store"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	In            string
	Timezone      string
	GlobalAvatars bool
	As            string // "html" | "text"
	From          string // "json" | "db"
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an archive as HTML or text",
		Long: `Render an archive directory produced by 'grouparchive archive'.

HTML output is written to rendered.html next to main.css and the like
icons under assets/; text output is written to rendered.txt. Messages are
grouped by day in the chosen timezone.

Example:
  grouparchive render --in ./family
  grouparchive render --in ./family --timezone America/New_York --as text
  grouparchive render --in ./family --from db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "archive directory (required)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA timezone for timestamps (default local)")
	cmd.Flags().BoolVar(&opts.GlobalAvatars, "global-avatars", false, "show roster avatars instead of per-chat avatars")
	cmd.Flags().StringVar(&opts.As, "as", "html", "output format (html|text)")
	cmd.Flags().StringVar(&opts.From, "from", "json", "read the archive from the JSON records or archive.db (json|db)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

// RenderResult is the JSON payload of a successful render.
type RenderResult struct {
	Path     string `json:"path"`
	Messages int    `json:"messages"`
	Items    int    `json:"items"`
}

func runRender(ctx context.Context, opts *RenderOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if cmd.Flags().Changed("timezone") {
		cfg.Timezone = opts.Timezone
	}
	if cmd.Flags().Changed("global-avatars") {
		cfg.UseGlobalAvatar = opts.GlobalAvatars
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	var serializer render.Serializer
	switch opts.As {
	case "html":
		serializer = render.HTML{}
	case "text":
		serializer = render.Text{}
	default:
		return formatter.Fail(ExitCommandError, ErrCodeConfig, fmt.Sprintf("invalid --as %q: must be html or text", opts.As), nil)
	}

	a, err := loadArchive(ctx, opts.In, opts.From)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, archive.ErrIncompleteArchive) || errors.Is(err, store.ErrNoSnapshot) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no archive found in "+opts.In, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load archive", err)
	}
	idx, err := render.LoadAssets(opts.In)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to index assets", err)
	}

	doc, err := render.Build(a, idx, render.Options{
		Location:        loc,
		UseGlobalAvatar: cfg.UseGlobalAvatar,
		SystemSender:    cfg.SystemSender,
		Logger:          opts.logger(cmd),
	})
	if err != nil {
		if chat.IsIntegrityFault(err) {
			return formatter.Fail(ExitFailure, ErrCodeIntegrity, "archive is inconsistent", err)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "render failed", err)
	}

	path, err := render.WriteSite(opts.In, doc, serializer)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "failed to write output", err)
	}

	result := RenderResult{Path: path, Messages: len(a.Messages), Items: len(doc.Items)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Rendered %d message(s) to %s\n", result.Messages, result.Path)
	return nil
}

// loadArchive reads the archive from its JSON records or its index.
func loadArchive(ctx context.Context, dir, from string) (chat.Archive, error) {
	switch from {
	case "json", "":
		return archive.LoadJSON(dir)
	case "db":
		path := filepath.Join(dir, archive.DatabaseFile)
		if _, err := os.Stat(path); err != nil {
			return chat.Archive{}, err
		}
		s, err := store.Open(path)
		if err != nil {
			return chat.Archive{}, err
		}
		defer s.Close()
		return s.LoadArchive(ctx)
	}
	return chat.Archive{}, fmt.Errorf("invalid --from %q: must be json or db", from)
}
