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
	"github.com/roach88/grouparchive/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	In string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an archive against its last recorded run",
		Long: `Recompute the digest of the JSON records in an archive directory and
compare it with the digest stored in archive.db by the last archive run.
A mismatch means the records were edited or only partly written.

Example:
  grouparchive verify --in ./family`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "archive directory (required)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

// VerifyResult is the JSON payload of a successful verification.
type VerifyResult struct {
	RunID    string `json:"run_id"`
	Digest   string `json:"digest"`
	Messages int    `json:"messages"`
	People   int    `json:"people"`
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := archive.LoadJSON(opts.In)
	if err != nil {
		if errors.Is(err, archive.ErrIncompleteArchive) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no archive found in "+opts.In, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load archive", err)
	}
	if err := a.People.Verify(a.Messages); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeIntegrity, "archive is inconsistent", err)
	}
	digest, err := chat.Digest(a)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to hash archive", err)
	}

	path := filepath.Join(opts.In, archive.DatabaseFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no archive index in "+opts.In, err)
	}
	s, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to open archive index", err)
	}
	defer s.Close()

	run, err := s.LatestRun(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "archive index has no runs", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to read archive index", err)
	}

	if run.Digest != digest {
		return formatter.Fail(ExitFailure, ErrCodeMismatch,
			fmt.Sprintf("digest mismatch: run %s recorded %s, records hash to %s", run.ID, run.Digest, digest), nil)
	}

	result := VerifyResult{RunID: run.ID, Digest: digest, Messages: len(a.Messages), People: len(a.People)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Archive matches run %s (%d messages, %d people)\n", run.ID, result.Messages, result.People)
	fmt.Fprintf(formatter.Writer, "  Digest: %s\n", digest)
	return nil
}
