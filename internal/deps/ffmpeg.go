package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// CheckFFmpegEncoder runs `ffmpeg -encoders` and confirms the MPEG-4 Part 2
// encoder timelapses use is compiled in.
func CheckFFmpegEncoder(ctx context.Context, binary string) Status {
	status := Status{
		Name:        "FFmpeg mpeg4 encoder",
		Command:     binary,
		Description: "MPEG-4 Part 2 (mp4v) video encoder",
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("probe failed: %v", err)
		return status
	}
	if hasEncoder(out, "mpeg4") {
		status.Available = true
		return status
	}
	status.Detail = "ffmpeg build lacks the mpeg4 encoder"
	return status
}

// hasEncoder scans `ffmpeg -encoders` output, whose rows look like
// " V....D mpeg4                MPEG-4 part 2".
func hasEncoder(listing []byte, name string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") && fields[1] == name {
			return true
		}
	}
	return false
}
