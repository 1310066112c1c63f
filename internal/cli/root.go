package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/grouparchive/internal/config"
	"github.com/roach88/grouparchive/internal/groupme"
)

// DotenvFile is read from the working directory when present.
const DotenvFile = ".env"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Token      string
	Verbose    bool
	Format     string // "json" | "text"

	// Env overrides the process environment lookup (for testing).
	Env config.LookupFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the grouparchive CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grouparchive",
		Short: "Archive and render GroupMe chats",
		Long: `grouparchive downloads the complete history of a GroupMe chat, with
its people, avatars and attachments, into a self-contained directory and
renders it as a browsable HTML page or a plain transcript.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts.Verbose))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "GroupMe access token (overrides $"+config.EnvToken+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// Execute runs the CLI with os.Args and returns the process exit code.
// Commands report their own failures through the output formatter; any
// other error (bad flags, wrong arguments) is printed here.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return ExitCommandError
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// formatter returns the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	format := o.Format
	if format == "" {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger returns a logger writing to the command's stderr.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return newLogger(cmd.ErrOrStderr(), o.Verbose)
}

// loadConfig layers the config file, environment and --token. Commands
// apply their own flags and then call Validate.
func (o *RootOptions) loadConfig() (config.Config, error) {
	env := o.Env
	if env == nil {
		var err error
		env, err = config.Environ(DotenvFile)
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(o.ConfigPath, env)
	if err != nil {
		return config.Config{}, err
	}
	if o.Token != "" {
		cfg.Token = o.Token
	}
	return cfg, nil
}

// client builds a GroupMe client from a validated config.
func (o *RootOptions) client(cmd *cobra.Command, cfg config.Config) *groupme.Client {
	opts := cfg.ClientOptions()
	opts.Logger = o.logger(cmd)
	return groupme.NewClient(opts)
}

// apiConfig loads and validates the config for commands that call the
// GroupMe API.
func (o *RootOptions) apiConfig() (config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if err := validateAPIConfig(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func validateAPIConfig(cfg config.Config) error {
	if cfg.Token == "" {
		return fmt.Errorf("no access token: pass --token or set %s", config.EnvToken)
	}
	return cfg.Validate()
}
