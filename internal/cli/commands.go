package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/livefeed"
	"github.com/park285/padel-scoreboard/internal/msgcat"
	"github.com/park285/padel-scoreboard/internal/padelclient"
	"github.com/park285/padel-scoreboard/internal/scoreboard"
)

func newStartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <player0> <player1>",
		Short: "Start a new match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				id, err := b.Start(ctx, args)
				if err != nil {
					return err
				}
				text := opts.msgs.Text(msgcat.CLIStarted, map[string]any{"ID": id, "Player0": args[0], "Player1": args[1]})
				return out.Success(map[string]string{"match_id": id}, text)
			})
		},
	}
}

func newPointCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "point <match-id> <0|1>",
		Short: "Award a point to side 0 or 1",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[1])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				if err := b.Point(ctx, args[0], side); err != nil {
					return err
				}
				return printScore(ctx, b, out, opts, args[0])
			})
		},
	}
}

func newUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <match-id>",
		Short: "Remove the last recorded point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				if err := b.Undo(ctx, args[0]); err != nil {
					return err
				}
				return printScore(ctx, b, out, opts, args[0])
			})
		},
	}
}

func newEndCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "end <match-id>",
		Short: "Complete the match and export it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				loc, err := b.End(ctx, args[0])
				if err != nil {
					return err
				}
				text := opts.msgs.Text(msgcat.CLIExported, map[string]any{"Location": loc})
				return out.Success(map[string]string{"status": "completed", "exported_to": loc}, text)
			})
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <match-id>",
		Short: "Print the current score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				return printScore(ctx, b, out, opts, args[0])
			})
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <match-id>",
		Short: "Print or save the export snapshot without ending the match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				snap, err := b.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				raw, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				if outPath == "" {
					return out.Success(snap, string(raw))
				}
				if err := os.WriteFile(outPath, raw, 0o644); err != nil {
					return err
				}
				text := opts.msgs.Text(msgcat.CLIExported, map[string]any{"Location": outPath})
				return out.Success(map[string]string{"exported_to": outPath}, text)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the snapshot to this file")
	return cmd
}

func newVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <match-id>",
		Short: "Compare the stored score with a replay of the point history",
		Long: `verify replays the point history and compares it with the stored score.
Undoing a point that had closed a game leaves them different; the command
exits with status 1 in that case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				rep, err := b.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				var text string
				if rep.Consistent {
					text = opts.msgs.Text(msgcat.CLIConsistent, map[string]any{"Events": rep.Events})
				} else {
					text = opts.msgs.Text(msgcat.CLIDrift, map[string]any{
						"Cached":   formatSets(rep.CachedSets) + " / " + rep.CachedGameScore.String(),
						"Replayed": formatSets(rep.ReplayedSets) + " / " + rep.ReplayedGameScore.String(),
					})
				}
				if err := out.Success(rep, text); err != nil {
					return err
				}
				if !rep.Consistent {
					return NewExitError(ExitFailure, "score differs from history")
				}
				return nil
			})
		},
	}
}

func newScoreboardCommand(opts *RootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "scoreboard <match-id>",
		Short: "Render the score panel as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(ctx context.Context, b Backend, out *OutputFormatter) error {
				snap, err := b.Snapshot(ctx, args[0])
				if err != nil {
					return err
				}
				img, err := scoreboard.RenderPNG(ctx, snap)
				if err != nil {
					return err
				}
				if outPath == "" {
					outPath = "scoreboard_" + snap.MatchID + ".png"
				}
				if err := os.WriteFile(outPath, img, 0o644); err != nil {
					return err
				}
				return out.Success(map[string]string{"path": outPath}, outPath)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "PNG file to write")
	return cmd
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	var reconnects int
	cmd := &cobra.Command{
		Use:   "watch <match-id>",
		Short: "Follow a match on the server's live feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Live == "" {
				return NewExitError(ExitCommandError, "--live is required for watch")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			w := padelclient.NewWatcher(opts.Live, reconnects)
			err := w.Watch(ctx, args[0], func(f livefeed.Frame) {
				if f.Match == nil {
					return
				}
				_ = out.Success(f.Match, scoreLine(opts, f.Match))
			})
			if err != nil && ctx.Err() == nil {
				_ = out.Error(err.Error())
				return WrapExitError(ExitFailure, "watch", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Live, "live", "", "live feed base URL, e.g. ws://localhost:8001")
	cmd.Flags().IntVar(&reconnects, "reconnects", 5, "reconnect attempts after the feed drops")
	return cmd
}

func printScore(ctx context.Context, b Backend, out *OutputFormatter, opts *RootOptions, matchID string) error {
	snap, err := b.Snapshot(ctx, matchID)
	if err != nil {
		return err
	}
	return out.Success(snap, scoreLine(opts, snap))
}

func scoreLine(opts *RootOptions, snap *export.Snapshot) string {
	return opts.msgs.Text(msgcat.CLIScore, map[string]any{
		"Player0": snap.Players[0],
		"Player1": snap.Players[1],
		"Sets":    formatSets(snap.Score.Sets),
		"Game":    snap.CurrentGameScore,
		"Status":  string(snap.Status),
	})
}
