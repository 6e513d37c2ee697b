package daemon

import (
	"context"
	"errors"
	"time"

	"snaplapse/internal/dedup"
	"snaplapse/internal/hotkey"
	"snaplapse/internal/logging"
	"snaplapse/internal/timelapse"
)

// Capture triggers recorded in logs.
const (
	triggerInterval = "interval"
	triggerHotkey   = "hotkey"
	triggerCommand  = "command"
)

// captureLoop runs one capture per interval. Each cycle finishes before the
// next wait starts, so a slow capture delays rather than overlaps the next.
func (d *Daemon) captureLoop(ctx context.Context) {
	interval := d.cfg.CaptureInterval()
	for {
		_, _ = d.captureOnce(ctx, triggerInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// hotkeyLoop captures on every press of the configured combination. On
// platforms without a registrar it logs once and returns.
func (d *Daemon) hotkeyLoop(ctx context.Context) {
	combo, err := hotkey.Parse(d.cfg.Capture.Hotkey)
	if err != nil {
		d.hotkeyState.Store("invalid: " + err.Error())
		logging.WarnWithContext(d.logger, "hotkey not registered", "hotkey_invalid",
			logging.String("hotkey", d.cfg.Capture.Hotkey),
			logging.Error(err),
			logging.String(logging.FieldImpact, "captures only happen on the interval and via snaplapse capture"),
		)
		return
	}
	reg, err := d.register(combo)
	if err != nil {
		if errors.Is(err, hotkey.ErrUnsupported) {
			d.hotkeyState.Store("unsupported on this platform")
			d.logger.Info("global hotkey unavailable on this platform; use snaplapse capture instead",
				logging.String("hotkey", combo.String()),
				logging.String(logging.FieldEventType, "hotkey_unsupported"),
			)
			return
		}
		d.hotkeyState.Store("failed: " + err.Error())
		logging.WarnWithContext(d.logger, "hotkey registration failed", "hotkey_register_failed",
			logging.String("hotkey", combo.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another program may own this combination; choose a different capture.hotkey"),
		)
		return
	}
	defer reg.Close()

	d.hotkeyState.Store("listening on " + combo.String())
	d.logger.Info("hotkey registered",
		logging.String("hotkey", combo.String()),
		logging.String(logging.FieldEventType, "hotkey_registered"),
	)
	for {
		if _, err := reg.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.hotkeyState.Store("stopped: " + err.Error())
			logging.WarnWithContext(d.logger, "hotkey listener stopped", "hotkey_wait_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "hotkey captures disabled until restart"),
			)
			return
		}
		_, _ = d.captureOnce(ctx, triggerHotkey)
	}
}

// captureOnce grabs the screen and hands the frame to the deduplicator.
// Failures are logged here; the periodic task retries on its next tick.
func (d *Daemon) captureOnce(ctx context.Context, trigger string) (dedup.Decision, error) {
	frame, err := d.source.Capture(ctx)
	if err != nil {
		d.captureError.Store(err.Error())
		logging.WarnWithContext(d.logger, "screen capture failed", "capture_failed",
			logging.String("trigger", trigger),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no screenshot this cycle"),
			logging.String(logging.FieldErrorHint, "check display access; capture retries on the next interval"),
		)
		return dedup.Decision{}, err
	}
	decision, err := d.dedup.Consider(ctx, frame)
	if err != nil {
		d.captureError.Store(err.Error())
		logging.WarnWithContext(d.logger, "screenshot not stored", "capture_failed",
			logging.String("trigger", trigger),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no screenshot this cycle"),
			logging.String(logging.FieldErrorHint, "check free space and permissions under "+d.store.ScreenshotsDir()),
		)
		return dedup.Decision{}, err
	}
	d.captureError.Store("")
	d.logger.Debug("capture considered",
		logging.String("trigger", trigger),
		logging.String("outcome", string(decision.Outcome)),
	)
	return decision, nil
}

// startupBacklog assembles every finished day that has no timelapse yet.
// Today's bucket is left alone, so capture runs alongside it.
func (d *Daemon) startupBacklog(ctx context.Context) {
	report, err := d.assembler.ScanAndBacklog(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(d.logger, "startup backlog scan failed", "backlog_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run snaplapse backlog to retry"),
		)
		return
	}
	d.lastBacklog.Store(&report)
	if n := report.Count(timelapse.StatusFailed); n > 0 {
		logging.WarnWithContext(d.logger, "some timelapses could not be assembled", "backlog_partial",
			logging.Int("failed", n),
			logging.String(logging.FieldErrorHint, "see earlier backlog_bucket_failed entries"),
		)
	}
}
