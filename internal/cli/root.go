package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/park285/padel-scoreboard/internal/msgcat"
	"github.com/park285/padel-scoreboard/internal/obslog"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	Server  string // base URL of a running padel-server; empty uses the local store
	Live    string // live feed base URL for watch
	Verbose bool

	open Opener
	msgs *msgcat.Catalog
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand builds padelctl. A nil opener means DefaultOpener.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = DefaultOpener
	}
	opts := &RootOptions{open: open, msgs: msgcat.MustDefault()}

	cmd := &cobra.Command{
		Use:   "padelctl",
		Short: "Score padel matches from the command line",
		Long: `padelctl records points for padel matches.

Without --server it works directly on the store configured by the
environment (REDIS_URL, SQLITE_PATH, ...). With --server it drives a
running padel-server over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Verbose {
				// logs go to stderr so --format json output stays parseable
				l, err := obslog.New(obslog.Options{Level: zapcore.DebugLevel, Format: "console", Console: true, Stdout: cmd.ErrOrStderr()})
				if err != nil {
					return WrapExitError(ExitCommandError, "logger", err)
				}
				obslog.Set(l)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "padel-server base URL, e.g. http://localhost:8000")

	cmd.AddCommand(
		newStartCommand(opts),
		newPointCommand(opts),
		newUndoCommand(opts),
		newEndCommand(opts),
		newShowCommand(opts),
		newExportCommand(opts),
		newVerifyCommand(opts),
		newScoreboardCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

// withBackend opens the backend, runs fn and turns domain errors into exit errors.
func withBackend(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, b Backend, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, closeFn, err := opts.open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := fn(ctx, b, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		_ = out.Error(err.Error())
		return WrapExitError(ExitFailure, cmd.Name(), err)
	}
	return nil
}
