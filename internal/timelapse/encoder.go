package timelapse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"snaplapse/internal/logging"
)

// FrameWriter receives frames of one video in presentation order.
type FrameWriter interface {
	WriteFrame(frame *image.RGBA) error
	// Close finishes the video and reports any encoder failure.
	Close() error
	// Abort stops the encoder and discards its output.
	Abort()
}

// Encoder opens a video of fixed geometry and frame rate at path.
type Encoder interface {
	Open(ctx context.Context, path string, width, height, fps int) (FrameWriter, error)
}

// OutputSizer is implemented by encoders that store a video whose geometry
// differs from the frames they are fed.
type OutputSizer interface {
	OutputSize(width, height int) (int, int)
}

// FFmpegEncoder pipes raw RGB24 frames to an ffmpeg subprocess that writes
// MPEG-4 Part 2 video tagged mp4v in an MP4 container.
type FFmpegEncoder struct {
	Binary string
	Logger *slog.Logger
}

// OutputSize reports the stored geometry: yuv420p needs even dimensions, so
// odd sizes are padded by one pixel.
func (FFmpegEncoder) OutputSize(width, height int) (int, int) {
	return width + width%2, height + height%2
}

func (e FFmpegEncoder) args(path string, width, height, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-an",
		// yuv420p needs even dimensions.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "mpeg4",
		"-tag:v", "mp4v",
		"-q:v", "4",
		"-pix_fmt", "yuv420p",
		"-f", "mp4",
		path,
	}
}

// Open starts ffmpeg. The subprocess is killed if ctx is cancelled.
func (e FFmpegEncoder) Open(ctx context.Context, path string, width, height, fps int) (FrameWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid geometry %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame rate %d", fps)
	}
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	args := e.args(path, width, height, fps)
	cmd := exec.CommandContext(ctx, binary, args...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Debug("starting ffmpeg",
			logging.String("binary", binary),
			logging.String("args", strings.Join(args, " ")),
		)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &ffmpegWriter{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}, nil
}

type ffmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	width  int
	height int
	buf    []byte
	done   bool
}

func (w *ffmpegWriter) WriteFrame(frame *image.RGBA) error {
	if w.done {
		return errors.New("ffmpeg: write after close")
	}
	b := frame.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("ffmpeg: frame %dx%d does not match video %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := frame.Pix[frame.PixOffset(b.Min.X, y):]
		for x := 0; x < w.width; x++ {
			w.buf[i], w.buf[i+1], w.buf[i+2] = row[x*4], row[x*4+1], row[x*4+2]
			i += 3
		}
	}
	if _, err := w.stdin.Write(w.buf); err != nil {
		return fmt.Errorf("ffmpeg: write frame: %w%s", err, w.stderr.suffix())
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	closeErr := w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w%s", err, w.stderr.suffix())
	}
	if closeErr != nil {
		return fmt.Errorf("ffmpeg: close stdin: %w", closeErr)
	}
	return nil
}

func (w *ffmpegWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) suffix() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := strings.TrimSpace(t.buf.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}
