package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snaplapse/internal/daemonctl"
	"snaplapse/internal/ipc"
	"snaplapse/internal/logging"
	"snaplapse/internal/manifest"
	"snaplapse/internal/storage"
	"snaplapse/internal/timelapse"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Take a screenshot now",
		Long:  "Take a screenshot now through the daemon's capture pipeline. Unchanged screens are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Capture()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch resp.Outcome {
				case "accepted":
					fmt.Fprintf(out, "Saved %s\n", resp.Path)
				case "skipped":
					fmt.Fprintln(out, "Screen unchanged since the last screenshot; nothing saved")
				case "collision":
					fmt.Fprintf(out, "A screenshot was already taken this second: %s\n", resp.Path)
				default:
					fmt.Fprintf(out, "Capture outcome: %s\n", resp.Outcome)
				}
				return nil
			})
		},
	}
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var date string
	var force bool
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble a day's screenshots into a timelapse",
		Long: "Assemble a day's screenshots into timelapse_YYYY-MM-DD.mp4. A day that already has a " +
			"timelapse is left alone unless --force is given, so re-run with --force to regenerate " +
			"today's video after more screenshots were taken.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateKey, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			var resp *ipc.AssembleResponse
			if client := ctx.tryClient(); client != nil {
				defer client.Close()
				r, err := client.Assemble(dateKey, force)
				if err != nil {
					return withForceHint(err)
				}
				resp = r
			} else {
				r, err := assembleLocally(cmd.Context(), ctx, dateKey, force)
				if err != nil {
					return withForceHint(err)
				}
				resp = r
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Timelapse for %s written to %s\n", resp.Date, resp.Path)
			fmt.Fprintf(out, "  %s frames (%dx%d), %s skipped, %s, %s\n",
				formatCount(int64(resp.Frames)), resp.Width, resp.Height,
				formatCount(int64(resp.Skipped)), formatBytes(resp.Bytes),
				(time.Duration(resp.ElapsedMillis) * time.Millisecond).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to assemble as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing timelapse")
	return cmd
}

// withForceHint points at --force when a timelapse already exists. Errors
// from the daemon arrive as text, so the sentinel is matched by message too.
func withForceHint(err error) error {
	if errors.Is(err, timelapse.ErrArtifactExists) || strings.Contains(err.Error(), timelapse.ErrArtifactExists.Error()) {
		return fmt.Errorf("%w; use --force to regenerate it", err)
	}
	return err
}

func newBacklogCommand(ctx *commandContext) *cobra.Command {
	var includeToday bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Assemble every past day that has screenshots but no timelapse",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp ipc.BacklogResponse
			if client := ctx.tryClient(); client != nil {
				defer client.Close()
				r, err := client.Backlog(includeToday)
				if err != nil {
					return err
				}
				resp = *r
			} else {
				r, err := backlogLocally(cmd.Context(), ctx, includeToday)
				if err != nil {
					return err
				}
				resp = r
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			renderBacklog(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeToday, "include-today", false, "Also assemble today's (still growing) bucket")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderBacklog(out io.Writer, resp ipc.BacklogResponse) {
	if len(resp.Buckets) == 0 {
		fmt.Fprintln(out, "No screenshot days found")
		return
	}
	rows := make([][]string, 0, len(resp.Buckets))
	assembled := 0
	for _, b := range resp.Buckets {
		detail := ""
		switch b.Status {
		case string(timelapse.StatusAssembled):
			assembled++
			detail = b.Path
		case string(timelapse.StatusFailed):
			detail = b.Error
		}
		frames := "-"
		if b.Status == string(timelapse.StatusAssembled) {
			frames = formatCount(int64(b.Frames))
		}
		rows = append(rows, []string{b.Date, strings.ReplaceAll(b.Status, "_", " "), frames, detail})
	}
	fmt.Fprint(out, renderTable([]string{"Date", "Result", "Frames", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	fmt.Fprintf(out, "%s of %s days assembled\n", formatCount(int64(assembled)), formatCount(int64(len(resp.Buckets))))
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List screenshot days and their timelapse state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			buckets, _, err := daemonctl.ListBuckets(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, buckets)
			}
			out := cmd.OutOrStdout()
			if len(buckets) == 0 {
				fmt.Fprintln(out, "No screenshot days found")
				return nil
			}
			rows := make([][]string, 0, len(buckets))
			for _, b := range buckets {
				rows = append(rows, []string{
					b.Date,
					formatCount(int64(b.Frames)),
					yesNo(b.Artifact),
					formatBytes(b.ArtifactBytes),
					formatWhen(b.AssembledAt),
				})
			}
			fmt.Fprint(out, renderTable([]string{"Date", "Screenshots", "Timelapse", "Size", "Assembled"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open today's screenshot folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if client := ctx.tryClient(); client != nil {
				defer client.Close()
				resp, err := client.OpenToday()
				if err != nil {
					return err
				}
				path = resp.Path
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store := storage.FromConfig(cfg)
				path = store.BucketDir(storage.DateKey(time.Now()))
				if err := os.MkdirAll(path, 0o755); err != nil {
					return fmt.Errorf("create today's folder: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if printOnly {
				return nil
			}
			return folderOpener(path)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Only print the folder path")
	return cmd
}

// localAssembler builds an assembler for commands that run while the daemon
// is stopped. The returned cleanup closes the manifest.
func localAssembler(ctx context.Context, cmdCtx *commandContext) (*timelapse.Assembler, func(), error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cmdCtx.commandLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}
	var rec timelapse.Recorder
	if index, err := manifest.Open(ctx, cfg.ManifestPath()); err == nil {
		rec = index
		cleanup = func() { _ = index.Close() }
	} else {
		logging.WarnWithContext(logger, "manifest unavailable; assembling without recording", "manifest_open_failed",
			logging.Error(err))
	}
	return timelapse.NewFromConfig(cfg, storage.FromConfig(cfg), rec, logger), cleanup, nil
}

func assembleLocally(ctx context.Context, cmdCtx *commandContext, date string, force bool) (*ipc.AssembleResponse, error) {
	assembler, cleanup, err := localAssembler(ctx, cmdCtx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if strings.TrimSpace(date) == "" {
		date = assembler.Today()
	}
	result, err := assembler.Assemble(ctx, date, timelapse.Options{Force: force})
	if err != nil {
		return nil, err
	}
	resp := ipc.FromResult(result)
	return &resp, nil
}

func backlogLocally(ctx context.Context, cmdCtx *commandContext, includeToday bool) (ipc.BacklogResponse, error) {
	assembler, cleanup, err := localAssembler(ctx, cmdCtx)
	if err != nil {
		return ipc.BacklogResponse{}, err
	}
	defer cleanup()
	report, err := assembler.ScanAndBacklog(ctx, includeToday)
	if err != nil {
		return ipc.BacklogResponse{}, err
	}
	return ipc.FromScanReport(report), nil
}

func parseDateFlag(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || storage.ValidDateKey(value) {
		return value, nil
	}
	return "", fmt.Errorf("invalid --date %s: want YYYY-MM-DD", strconv.Quote(value))
}
