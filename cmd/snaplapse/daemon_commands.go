package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snaplapse/internal/daemonctl"
	"snaplapse/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the snaplapse daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the snaplapse daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(stdout io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	status := snap.Status

	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range snap.SystemChecks {
		fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range dependencyLines(status.Dependencies, snap.DependencySummary, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Capture", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range captureLines(status, colorize) {
		fmt.Fprintln(stdout, line)
	}
}

func captureLines(status ipc.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("Today", statusInfo, fmt.Sprintf("%s (%s screenshots)", status.Today, formatCount(int64(status.TodayFrames))), colorize),
		renderStatusLine("Screenshots", statusInfo, status.ScreenshotsDir, colorize),
		renderStatusLine("Timelapses", statusInfo, status.TimelapsesDir, colorize),
	}
	if !status.Running {
		return lines
	}
	dedupDetail := fmt.Sprintf("%s: %s accepted, %s skipped, %s collisions",
		status.Dedup.Strategy,
		formatCount(status.Dedup.Accepted),
		formatCount(status.Dedup.Skipped),
		formatCount(status.Dedup.Collisions))
	lines = append(lines, renderStatusLine("Dedup", statusInfo, dedupDetail, colorize))
	if !status.Dedup.LastAccepted.IsZero() {
		lines = append(lines, renderStatusLine("Last screenshot", statusOK, status.Dedup.LastAccepted.Local().Format(time.DateTime), colorize))
	}
	if status.LastCaptureError != "" {
		lines = append(lines, renderStatusLine("Last capture", statusError, status.LastCaptureError, colorize))
	}
	hotkeyKind := statusInfo
	if strings.HasPrefix(status.Hotkey, "listening") {
		hotkeyKind = statusOK
	} else if strings.HasPrefix(status.Hotkey, "failed") || strings.HasPrefix(status.Hotkey, "invalid") {
		hotkeyKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Hotkey", hotkeyKind, status.Hotkey, colorize))
	if !status.StartedAt.IsZero() {
		lines = append(lines, renderStatusLine("Uptime", statusInfo, time.Since(status.StartedAt).Truncate(time.Second).String(), colorize))
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
