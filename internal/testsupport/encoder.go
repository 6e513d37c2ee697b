package testsupport

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"snaplapse/internal/timelapse"
)

// RecordingEncoder stands in for ffmpeg. Each video is written as a short
// text file naming its geometry and frame count, and the frames are kept in
// memory for inspection.
type RecordingEncoder struct {
	mu     sync.Mutex
	videos [][]*image.RGBA
}

// Open implements timelapse.Encoder.
func (e *RecordingEncoder) Open(_ context.Context, path string, width, height, fps int) (timelapse.FrameWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &recordingWriter{enc: e, file: f, width: width, height: height, fps: fps}, nil
}

// Last returns the frames of the most recently completed video.
func (e *RecordingEncoder) Last() []*image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.videos) == 0 {
		return nil
	}
	return e.videos[len(e.videos)-1]
}

// Count reports how many videos were completed.
func (e *RecordingEncoder) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.videos)
}

type recordingWriter struct {
	enc    *RecordingEncoder
	file   *os.File
	width  int
	height int
	fps    int
	frames []*image.RGBA
}

func (w *recordingWriter) WriteFrame(frame *image.RGBA) error {
	w.frames = append(w.frames, frame)
	return nil
}

func (w *recordingWriter) Close() error {
	if _, err := fmt.Fprintf(w.file, "%dx%d@%d frames=%d\n", w.width, w.height, w.fps, len(w.frames)); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	w.enc.mu.Lock()
	w.enc.videos = append(w.enc.videos, w.frames)
	w.enc.mu.Unlock()
	return nil
}

func (w *recordingWriter) Abort() {
	_ = w.file.Close()
	_ = os.Remove(w.file.Name())
}
